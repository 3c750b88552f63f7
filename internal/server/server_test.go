package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/strataopt/strata/internal/config"
	"github.com/strataopt/strata/internal/search"
)

func testConfig() *config.Config {
	cfg := &config.Config{Environment: "test"}
	cfg.Optimizer.DefaultBudget = 20
	cfg.Optimizer.MaxBudget = 1000
	cfg.Optimizer.Workers = 1
	return cfg
}

func testServer(t *testing.T) (*Server, chi.Router) {
	t.Helper()
	srv := NewServer(testConfig(), zap.NewNop())
	for name, obj := range Builtins() {
		srv.RegisterObjective(name, obj)
	}
	srv.RegisterObjective("prefer-knn", func(cfg search.Configuration) (float64, error) {
		if algorithm, _ := cfg["algorithm"].Str(); algorithm == "k-nn" {
			return 0.9, nil
		}
		return 0.5, nil
	})
	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	t.Cleanup(func() { srv.Close() })
	return srv, r
}

func postOptimize(t *testing.T, r chi.Router, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/optimize", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestOptimizeLifecycle(t *testing.T) {
	_, r := testServer(t)

	rr := postOptimize(t, r, map[string]any{
		"space":     json.RawMessage(`{"algorithm": {"k-nn": {"n_neighbors": [1, 5]}, "naive-bayes": null}}`),
		"objective": "prefer-knn",
		"budget":    15,
		"seed":      42,
	})
	require.Equal(t, http.StatusAccepted, rr.Code)

	var accepted map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&accepted))
	id := accepted["optimization_id"]
	require.NotEmpty(t, id)

	var status map[string]any
	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/status/"+id, nil)
		poll := httptest.NewRecorder()
		r.ServeHTTP(poll, req)
		if poll.Code != http.StatusOK {
			return false
		}
		status = nil
		if err := json.NewDecoder(poll.Body).Decode(&status); err != nil {
			return false
		}
		return status["status"] == "completed"
	}, 5*time.Second, 10*time.Millisecond, "job should complete")

	assert.Equal(t, 0.9, status["best_score"])
	assert.Equal(t, float64(15), status["evaluations"])

	best, ok := status["best"].(map[string]any)
	require.True(t, ok)
	algorithm, ok := best["algorithm"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "label", algorithm["kind"])
	assert.Equal(t, "k-nn", algorithm["value"])

	trace, ok := status["trace"].([]any)
	require.True(t, ok)
	assert.Len(t, trace, 15)
}

func TestConcurrentOptimizeRequests(t *testing.T) {
	// Submission responses must not touch job state the run goroutine is
	// already mutating; this fails under the race detector if they do.
	_, r := testServer(t)

	var wg sync.WaitGroup
	codes := make([]int, 50)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rr := postOptimize(t, r, map[string]any{
				"space":     json.RawMessage(`{"x": [0, 1]}`),
				"objective": "sum",
				"budget":    5,
				"seed":      int64(i + 1),
			})
			codes[i] = rr.Code
			var accepted map[string]string
			if err := json.NewDecoder(rr.Body).Decode(&accepted); err == nil {
				assert.Equal(t, "pending", accepted["status"])
			}
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		assert.Equal(t, http.StatusAccepted, code, "request %d", i)
	}
}

func TestOptimizeRejectsBadRequests(t *testing.T) {
	_, r := testServer(t)

	tests := []struct {
		name string
		body map[string]any
		code int
	}{
		{
			name: "missing space",
			body: map[string]any{"objective": "sum"},
			code: http.StatusBadRequest,
		},
		{
			name: "malformed space",
			body: map[string]any{
				"space":     json.RawMessage(`{"x": [1, 2, 3]}`),
				"objective": "sum",
			},
			code: http.StatusBadRequest,
		},
		{
			name: "unknown objective",
			body: map[string]any{
				"space":     json.RawMessage(`{"x": [0, 1]}`),
				"objective": "nope",
			},
			code: http.StatusBadRequest,
		},
		{
			name: "unknown strategy",
			body: map[string]any{
				"space":     json.RawMessage(`{"x": [0, 1]}`),
				"objective": "sum",
				"strategy":  "annealing",
			},
			code: http.StatusBadRequest,
		},
		{
			name: "budget over maximum",
			body: map[string]any{
				"space":     json.RawMessage(`{"x": [0, 1]}`),
				"objective": "sum",
				"budget":    100000,
			},
			code: http.StatusBadRequest,
		},
		{
			name: "negative budget",
			body: map[string]any{
				"space":     json.RawMessage(`{"x": [0, 1]}`),
				"objective": "sum",
				"budget":    -1,
			},
			code: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postOptimize(t, r, tt.body)
			assert.Equal(t, tt.code, rr.Code)
		})
	}
}

func TestRandomStrategy(t *testing.T) {
	_, r := testServer(t)

	rr := postOptimize(t, r, map[string]any{
		"space":     json.RawMessage(`{"x": [0, 1]}`),
		"objective": "sum",
		"budget":    10,
		"seed":      7,
		"strategy":  "random",
	})
	require.Equal(t, http.StatusAccepted, rr.Code)

	var accepted map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&accepted))

	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/status/"+accepted["optimization_id"], nil)
		poll := httptest.NewRecorder()
		r.ServeHTTP(poll, req)
		var status map[string]any
		if err := json.NewDecoder(poll.Body).Decode(&status); err != nil {
			return false
		}
		return status["status"] == "completed"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStatusUnknownJob(t *testing.T) {
	_, r := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/opt_missing", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCancelTerminalJob(t *testing.T) {
	srv, r := testServer(t)

	srv.mu.Lock()
	srv.jobs["opt_done"] = &Job{ID: "opt_done", Status: "completed", cancel: func() {}}
	srv.mu.Unlock()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/optimization/opt_done", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestCancelUnknownJob(t *testing.T) {
	_, r := testServer(t)
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/optimization/opt_missing", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
