// Package randomsearch implements uniform random sampling over the
// flattened search space. It shares the budget, failure and life-cycle
// semantics of the swarm strategy and serves as the baseline to compare
// against.
package randomsearch

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/strataopt/strata/internal/optimization"
	"github.com/strataopt/strata/internal/search"
)

type runState int

const (
	stateInitialized runState = iota
	stateRunning
	stateCompleted
)

// Optimizer samples configurations uniformly at random.
type Optimizer struct {
	cfg  optimization.Config
	flat *search.Flattened
	rng  *rand.Rand

	mu     sync.Mutex
	state  runState
	trace  []optimization.Evaluation
	best   *optimization.Evaluation
	cancel context.CancelFunc
}

// New validates the configuration and search space before any budget is
// consumed.
func New(cfg optimization.Config) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	flat, err := search.Flatten(cfg.Space)
	if err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Optimizer{
		cfg:   cfg,
		flat:  flat,
		rng:   rand.New(rand.NewSource(seed)),
		trace: make([]optimization.Evaluation, 0, cfg.Budget),
	}, nil
}

// Optimize evaluates exactly Budget random configurations. Failed objective
// calls are recorded with the worst possible score and the run continues;
// ErrNoValidResult is returned when nothing succeeded. A second call
// returns ErrCompleted.
func (o *Optimizer) Optimize(ctx context.Context) (*optimization.Report, error) {
	o.mu.Lock()
	if o.state != stateInitialized {
		o.mu.Unlock()
		return nil, optimization.ErrCompleted
	}
	o.state = stateRunning
	ctx, o.cancel = context.WithCancel(ctx)
	o.mu.Unlock()
	defer o.cancel()

	defer func() {
		o.mu.Lock()
		o.state = stateCompleted
		o.mu.Unlock()
	}()

	d := o.flat.Dim()
	vec := make([]float64, d)
	for i := 0; i < o.cfg.Budget; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		for j := range vec {
			vec[j] = o.rng.Float64()
		}
		ev := o.evaluate(vec)
		o.record(ev)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	report, err := optimization.NewReport(o.trace, o.best)
	if err != nil {
		return nil, optimization.Wrap("Optimize", "no configuration could be scored", err)
	}
	return report, nil
}

// Best returns the best evaluation observed so far.
func (o *Optimizer) Best() *optimization.Evaluation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.best
}

// Trace returns a copy of the evaluations recorded so far.
func (o *Optimizer) Trace() []optimization.Evaluation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]optimization.Evaluation(nil), o.trace...)
}

// Stop cancels a running optimization.
func (o *Optimizer) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

func (o *Optimizer) evaluate(vec []float64) optimization.Evaluation {
	cfg, err := o.flat.Decode(vec)
	if err != nil {
		return optimization.Evaluation{Score: math.Inf(-1), Err: err}
	}
	score, err := o.cfg.Objective(cfg)
	if err != nil {
		return optimization.Evaluation{
			Config: cfg,
			Score:  math.Inf(-1),
			Err:    &optimization.ObjectiveError{Config: cfg, Err: err},
		}
	}
	return optimization.Evaluation{Config: cfg, Score: score}
}

func (o *Optimizer) record(ev optimization.Evaluation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ev.Index = len(o.trace)
	o.trace = append(o.trace, ev)
	if ev.Err == nil && (o.best == nil || ev.Score > o.best.Score) {
		evCopy := ev
		o.best = &evCopy
	}
}
