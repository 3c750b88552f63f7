package crossval

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/strataopt/strata/internal/search"
)

// constantPredictor always predicts the same label.
type constantPredictor struct {
	label float64
}

func (p constantPredictor) Predict(X mat.Matrix) ([]float64, error) {
	rows, _ := X.Dims()
	out := make([]float64, rows)
	for i := range out {
		out[i] = p.label
	}
	return out, nil
}

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 1.0, Accuracy([]float64{1, 0, 1}, []float64{1, 0, 1}))
	assert.Equal(t, 0.0, Accuracy([]float64{1, 1}, []float64{0, 0}))
	assert.InDelta(t, 0.5, Accuracy([]float64{1, 0}, []float64{1, 1}), 1e-12)
	assert.Equal(t, 0.0, Accuracy(nil, nil))
}

func TestObjectiveAveragesFolds(t *testing.T) {
	// 8 rows, labels half zero half one, in order. A constant-zero
	// predictor scores exactly the fraction of zeros in each test fold.
	X := mat.NewDense(8, 1, []float64{0, 1, 2, 3, 4, 5, 6, 7})
	y := []float64{0, 0, 0, 0, 1, 1, 1, 1}

	trainer := func(cfg search.Configuration, trainX mat.Matrix, trainY []float64) (Predictor, error) {
		rows, _ := trainX.Dims()
		require.Equal(t, rows, len(trainY))
		return constantPredictor{label: 0}, nil
	}

	obj, err := Objective(X, y, trainer, Accuracy, NewKFold(4, false, 0))
	require.NoError(t, err)
	score, err := obj(search.Configuration{})
	require.NoError(t, err)

	// Unshuffled folds of size 2: test labels {0,0},{0,0},{1,1},{1,1},
	// so accuracies are 1, 1, 0, 0.
	assert.InDelta(t, 0.5, score, 1e-12)
}

func TestObjectiveRejectsUndersizedData(t *testing.T) {
	trainer := func(cfg search.Configuration, trainX mat.Matrix, trainY []float64) (Predictor, error) {
		return constantPredictor{label: 0}, nil
	}

	tests := []struct {
		name string
		X    *mat.Dense
		y    []float64
		kf   KFold
	}{
		{
			name: "fewer rows than folds",
			X:    mat.NewDense(3, 1, []float64{0, 1, 2}),
			y:    []float64{0, 1, 0},
			kf:   NewKFold(5, false, 0),
		},
		{
			name: "label count mismatch",
			X:    mat.NewDense(4, 1, []float64{0, 1, 2, 3}),
			y:    []float64{0, 1},
			kf:   NewKFold(2, false, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := Objective(tt.X, tt.y, trainer, Accuracy, tt.kf)
			assert.Error(t, err)
			assert.Nil(t, obj)
		})
	}
}

func TestObjectivePropagatesTrainerError(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := []float64{0, 0, 1, 1}

	trainer := func(cfg search.Configuration, trainX mat.Matrix, trainY []float64) (Predictor, error) {
		if kernel, _ := cfg["kernel"].Str(); kernel == "poly" {
			return nil, errors.New("unsupported kernel")
		}
		return constantPredictor{label: 0}, nil
	}

	obj, err := Objective(X, y, trainer, Accuracy, NewKFold(2, false, 0))
	require.NoError(t, err)

	_, err = obj(search.Configuration{"kernel": search.Label("poly")})
	assert.Error(t, err)

	score, err := obj(search.Configuration{"kernel": search.Label("linear")})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, score, 1e-12)
}
