package optimization

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataopt/strata/internal/search"
)

func TestNewReport(t *testing.T) {
	cfg := search.Configuration{"x": search.Number(1)}
	trace := []Evaluation{
		{Index: 0, Config: cfg, Score: 0.5},
		{Index: 1, Config: cfg, Score: math.Inf(-1), Err: errors.New("boom")},
		{Index: 2, Config: cfg, Score: 0.7},
	}
	best := &trace[2]

	report, err := NewReport(trace, best)
	require.NoError(t, err)

	assert.Equal(t, 0.7, report.BestScore)
	assert.Equal(t, 3, report.Evaluations)
	assert.Equal(t, 1, report.Failures)
	assert.InDelta(t, 0.6, report.MeanScore, 1e-12, "failed evaluations are excluded from summary stats")
	assert.Greater(t, report.StdDevScore, 0.0)
}

func TestNewReportSingleSuccess(t *testing.T) {
	trace := []Evaluation{{Config: search.Configuration{}, Score: 0.4}}
	report, err := NewReport(trace, &trace[0])
	require.NoError(t, err)
	assert.Equal(t, 0.4, report.MeanScore)
	assert.Equal(t, 0.0, report.StdDevScore)
}

func TestNewReportNoValidResult(t *testing.T) {
	trace := []Evaluation{
		{Score: math.Inf(-1), Err: errors.New("boom")},
	}
	report, err := NewReport(trace, nil)
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, ErrNoValidResult))
}

func TestConfigValidate(t *testing.T) {
	space := search.NewSpace().AddRange("x", 0, 1)
	objective := func(cfg search.Configuration) (float64, error) { return 0, nil }

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Space: space, Objective: objective, Budget: 1}, false},
		{"nil space", Config{Objective: objective, Budget: 1}, true},
		{"nil objective", Config{Space: space, Budget: 1}, true},
		{"zero budget", Config{Space: space, Objective: objective}, true},
		{"negative budget", Config{Space: space, Objective: objective, Budget: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
