// Package server exposes the optimization service over HTTP: submitting
// runs, polling their status and cancelling them.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/strataopt/strata/internal/config"
	"github.com/strataopt/strata/internal/metrics"
	"github.com/strataopt/strata/internal/optimization"
	"github.com/strataopt/strata/internal/optimization/randomsearch"
	"github.com/strataopt/strata/internal/optimization/swarm"
	"github.com/strataopt/strata/internal/search"
)

// Job tracks one optimization run. Access is guarded by the server's
// mutex.
type Job struct {
	ID          string
	Status      string // "pending", "running", "completed", "failed", "cancelled"
	Strategy    string
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time
	Report      *optimization.Report
	Error       string
	cancel      context.CancelFunc
}

// Server manages optimization jobs and the named objective registry.
// Objectives are registered in-process; the wire format cannot carry a
// scoring function.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	mu         sync.RWMutex
	jobs       map[string]*Job
	objectives map[string]optimization.Objective
}

// NewServer creates a server with an empty registry.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:        cfg,
		logger:     logger,
		jobs:       make(map[string]*Job),
		objectives: make(map[string]optimization.Objective),
	}
}

// RegisterObjective makes a scoring function addressable by name in
// optimize requests.
func (s *Server) RegisterObjective(name string, obj optimization.Objective) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objectives[name] = obj
}

// RegisterRoutes mounts the API under /api/v1.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
	})
}

type optimizeRequest struct {
	// Space uses the nested JSON authoring notation.
	Space     json.RawMessage `json:"space"`
	Objective string          `json:"objective"`
	Budget    int             `json:"budget"`
	Seed      int64           `json:"seed"`
	Strategy  string          `json:"strategy"`
	Workers   int             `json:"workers"`
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Space) == 0 {
		s.respondError(w, http.StatusBadRequest, "space is required")
		return
	}

	space, err := search.Parse(req.Space)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.RLock()
	objective, ok := s.objectives[req.Objective]
	s.mu.RUnlock()
	if !ok {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown objective %q", req.Objective))
		return
	}

	budget := req.Budget
	if budget == 0 {
		budget = s.cfg.Optimizer.DefaultBudget
	}
	if budget > s.cfg.Optimizer.MaxBudget {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("budget %d exceeds maximum %d", budget, s.cfg.Optimizer.MaxBudget))
		return
	}
	workers := req.Workers
	if workers == 0 {
		workers = s.cfg.Optimizer.Workers
	}

	optCfg := optimization.Config{
		Space:     space,
		Objective: countEvaluations(objective),
		Budget:    budget,
		Seed:      req.Seed,
		Workers:   workers,
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = "swarm"
	}

	var optimizer optimization.Optimizer
	switch strategy {
	case "swarm":
		var opts []swarm.Option
		if s.cfg.Optimizer.SwarmSize > 0 {
			opts = append(opts, swarm.WithSwarmSize(s.cfg.Optimizer.SwarmSize))
		}
		optimizer, err = swarm.New(optCfg, opts...)
	case "random":
		optimizer, err = randomsearch.New(optCfg)
	default:
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown strategy %q", strategy))
		return
	}
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:          fmt.Sprintf("opt_%d", time.Now().UnixNano()),
		Status:      "pending",
		Strategy:    strategy,
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
		cancel:      cancel,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	// Capture the response fields before the job goroutine starts
	// mutating the mutex-guarded job state.
	jobID, status := job.ID, job.Status

	go s.run(ctx, job, optimizer)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"optimization_id": jobID,
		"status":          status,
	})
}

// run executes one optimization job and records its outcome.
func (s *Server) run(ctx context.Context, job *Job, optimizer optimization.Optimizer) {
	s.mu.Lock()
	job.Status = "running"
	job.LastUpdated = time.Now()
	s.mu.Unlock()

	start := time.Now()
	report, err := optimizer.Optimize(ctx)
	metrics.RunDuration.Observe(time.Since(start).Seconds())

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	job.EndTime = &now
	job.LastUpdated = now

	switch {
	case errors.Is(err, context.Canceled):
		job.Status = "cancelled"
		metrics.RunsTotal.WithLabelValues("cancelled").Inc()
	case err != nil:
		job.Status = "failed"
		job.Error = err.Error()
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("optimization failed",
			zap.String("optimization_id", job.ID),
			zap.Error(err),
		)
	default:
		job.Status = "completed"
		job.Report = report
		metrics.RunsTotal.WithLabelValues("completed").Inc()
		s.logger.Info("optimization completed",
			zap.String("optimization_id", job.ID),
			zap.Float64("best_score", report.BestScore),
			zap.Int("evaluations", report.Evaluations),
			zap.Int("failures", report.Failures),
		)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		s.respondError(w, http.StatusNotFound, "optimization not found")
		return
	}

	resp := map[string]any{
		"optimization_id": job.ID,
		"status":          job.Status,
		"strategy":        job.Strategy,
		"start_time":      job.StartTime.Format(time.RFC3339),
		"last_update":     job.LastUpdated.Format(time.RFC3339),
	}
	if job.EndTime != nil {
		resp["end_time"] = job.EndTime.Format(time.RFC3339)
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	if job.Report != nil {
		resp["best"] = job.Report.Best
		resp["best_score"] = job.Report.BestScore
		resp["evaluations"] = job.Report.Evaluations
		resp["failures"] = job.Report.Failures
		resp["mean_score"] = job.Report.MeanScore
		resp["stddev_score"] = job.Report.StdDevScore

		trace := make([]map[string]any, len(job.Report.Trace))
		for i, ev := range job.Report.Trace {
			entry := map[string]any{
				"index":  ev.Index,
				"config": ev.Config,
				"score":  ev.Score,
			}
			if ev.Err != nil {
				entry["error"] = ev.Err.Error()
			}
			trace[i] = entry
		}
		resp["trace"] = trace
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		s.respondError(w, http.StatusNotFound, "optimization not found")
		return
	}
	switch job.Status {
	case "completed", "failed", "cancelled":
		s.respondError(w, http.StatusConflict, fmt.Sprintf("cannot cancel optimization with status %q", job.Status))
		return
	}

	job.cancel()
	job.Status = "cancelled"
	now := time.Now()
	job.EndTime = &now
	job.LastUpdated = now

	s.logger.Info("optimization cancelled", zap.String("optimization_id", id))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.logger.Warn("request rejected",
		zap.Int("status", status),
		zap.String("message", message),
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// Close cancels every running job.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.cancel != nil {
			job.cancel()
		}
	}
	return nil
}

// countEvaluations instruments an objective with the evaluation counter.
func countEvaluations(obj optimization.Objective) optimization.Objective {
	return func(cfg search.Configuration) (float64, error) {
		metrics.EvaluationsTotal.Inc()
		return obj(cfg)
	}
}
