// Package optimization defines the contracts shared by the search
// strategies: the objective boundary, evaluation records, reports and the
// optimizer life cycle.
package optimization

import (
	"context"

	"github.com/strataopt/strata/internal/search"
)

// Objective is the caller-supplied scoring function. It receives a fully
// populated configuration (inactive branch parameters unset) and returns a
// score where higher is better. Each call counts as one unit of budget.
type Objective func(cfg search.Configuration) (float64, error)

// Optimizer is the interface implemented by the search strategies.
type Optimizer interface {
	// Optimize runs the search until the evaluation budget is exhausted.
	// It may be called once per optimizer.
	Optimize(ctx context.Context) (*Report, error)

	// Best returns the best evaluation observed so far, or nil.
	Best() *Evaluation

	// Trace returns the evaluations recorded so far.
	Trace() []Evaluation

	// Stop cancels a running optimization.
	Stop()
}

// Config is the common configuration of a search run.
type Config struct {
	// Space describes the structured search space. Read-only for the
	// optimizer's lifetime.
	Space *search.Space

	// Objective scores one configuration.
	Objective Objective

	// Budget caps the total number of objective invocations. Must be
	// positive.
	Budget int

	// Seed makes the run reproducible. Zero seeds from the clock.
	Seed int64

	// Workers > 1 enables concurrent evaluation. Tie-breaking between
	// equal scores then becomes first-to-complete instead of strict
	// evaluation order.
	Workers int
}

// Validate checks the run parameters that are common to all strategies.
func (c Config) Validate() error {
	if c.Space == nil {
		return E("Validate", "search space is required")
	}
	if c.Objective == nil {
		return E("Validate", "objective function is required")
	}
	if c.Budget < 1 {
		return Ef("Validate", "budget must be positive, got %d", c.Budget)
	}
	return nil
}

// Evaluation is one consumed unit of budget: the configuration tried, the
// score it obtained, and the objective failure if it had one. Failed
// evaluations carry the worst possible score so they never win.
type Evaluation struct {
	Index  int
	Config search.Configuration
	Score  float64
	Err    error
}
