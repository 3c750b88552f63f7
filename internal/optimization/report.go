package optimization

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/strataopt/strata/internal/search"
)

// Report is the outcome of one optimization run: the best configuration,
// its score, the full trace for diagnostics, and summary statistics over
// the successful evaluations. Immutable once returned.
type Report struct {
	Best        search.Configuration
	BestScore   float64
	Trace       []Evaluation
	Evaluations int
	Failures    int
	MeanScore   float64
	StdDevScore float64
}

// NewReport assembles a report from a finished trace. It returns
// ErrNoValidResult when no evaluation succeeded.
func NewReport(trace []Evaluation, best *Evaluation) (*Report, error) {
	if best == nil {
		return nil, ErrNoValidResult
	}

	scores := make([]float64, 0, len(trace))
	failures := 0
	for _, ev := range trace {
		if ev.Err != nil {
			failures++
			continue
		}
		scores = append(scores, ev.Score)
	}

	mean := stat.Mean(scores, nil)
	sd := 0.0
	if len(scores) > 1 {
		sd = stat.StdDev(scores, nil)
	}
	if math.IsNaN(sd) {
		sd = 0
	}

	return &Report{
		Best:        best.Config.Clone(),
		BestScore:   best.Score,
		Trace:       trace,
		Evaluations: len(trace),
		Failures:    failures,
		MeanScore:   mean,
		StdDevScore: sd,
	}, nil
}
