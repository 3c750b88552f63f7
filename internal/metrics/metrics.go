// Package metrics exposes Prometheus instrumentation for the optimization
// service. Collectors register against the default registry, which cmd
// serves through promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EvaluationsTotal counts objective invocations across all runs.
	EvaluationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "strata",
		Name:      "objective_evaluations_total",
		Help:      "Total objective function evaluations.",
	})

	// RunsTotal counts finished optimization runs by outcome.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strata",
		Name:      "optimization_runs_total",
		Help:      "Finished optimization runs by status.",
	}, []string{"status"})

	// RunDuration observes wall-clock duration of optimization runs.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "strata",
		Name:      "optimization_run_duration_seconds",
		Help:      "Wall-clock duration of optimization runs.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	})
)
