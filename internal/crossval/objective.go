package crossval

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/strataopt/strata/internal/optimization"
	"github.com/strataopt/strata/internal/search"
)

// Predictor scores unseen rows after training.
type Predictor interface {
	Predict(X mat.Matrix) ([]float64, error)
}

// Trainer fits a model for one configuration on a training split. A trainer
// should reject configurations it cannot honor (for example an invalid
// kernel and parameter combination) by returning an error; the optimizer
// records the failure and keeps searching.
type Trainer func(cfg search.Configuration, X mat.Matrix, y []float64) (Predictor, error)

// Metric compares held-out labels with predictions, higher is better.
type Metric func(yTrue, yPred []float64) float64

// Accuracy is the fraction of exact label matches.
func Accuracy(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	hits := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(yTrue))
}

// Objective builds a cross-validated objective: for every configuration it
// trains on each fold's training rows, scores the held-out rows with the
// metric and returns the mean score across folds. The data must have at
// least NSplits rows so every fold has a non-empty test split, and one
// label per row.
func Objective(X mat.Matrix, y []float64, train Trainer, metric Metric, kf KFold) (optimization.Objective, error) {
	rows, _ := X.Dims()
	if rows < kf.NSplits {
		return nil, fmt.Errorf("crossval: %d rows cannot fill %d folds", rows, kf.NSplits)
	}
	if len(y) != rows {
		return nil, fmt.Errorf("crossval: %d labels for %d rows", len(y), rows)
	}
	folds := kf.Split(rows)

	return func(cfg search.Configuration) (float64, error) {
		scores := make([]float64, 0, len(folds))
		for i, fold := range folds {
			trainX, trainY := subset(X, y, fold.Train)
			testX, testY := subset(X, y, fold.Test)

			model, err := train(cfg, trainX, trainY)
			if err != nil {
				return 0, fmt.Errorf("fold %d: train: %w", i, err)
			}
			pred, err := model.Predict(testX)
			if err != nil {
				return 0, fmt.Errorf("fold %d: predict: %w", i, err)
			}
			if len(pred) != len(testY) {
				return 0, fmt.Errorf("fold %d: got %d predictions for %d rows", i, len(pred), len(testY))
			}
			scores = append(scores, metric(testY, pred))
		}
		return stat.Mean(scores, nil), nil
	}, nil
}

// subset copies the selected rows of X and y.
func subset(X mat.Matrix, y []float64, idx []int) (*mat.Dense, []float64) {
	_, cols := X.Dims()
	outX := mat.NewDense(len(idx), cols, nil)
	outY := make([]float64, len(idx))
	for i, ri := range idx {
		for j := 0; j < cols; j++ {
			outX.Set(i, j, X.At(ri, j))
		}
		outY[i] = y[ri]
	}
	return outX, outY
}
