// Package crossval composes caller-supplied model training into an
// objective function: partition the data into folds, train on each training
// split, score on the held-out rows and average. The optimizer only ever
// sees the resulting Configuration -> score function.
package crossval

import "math/rand"

// Fold is one train/test partition of the row indices.
type Fold struct {
	Train []int
	Test  []int
}

// KFold splits n rows into NSplits folds. Every row appears in exactly one
// test split.
type KFold struct {
	NSplits int
	Shuffle bool
	Seed    int64
}

// NewKFold returns a splitter; fewer than 2 splits falls back to 5.
func NewKFold(nSplits int, shuffle bool, seed int64) KFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return KFold{NSplits: nSplits, Shuffle: shuffle, Seed: seed}
}

// Split produces the folds for n rows. The first n mod NSplits folds get one
// extra test row when n does not divide evenly. n below NSplits leaves the
// trailing folds with empty test splits; Objective rejects such data up
// front.
func (k KFold) Split(n int) []Fold {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if k.Shuffle {
		r := rand.New(rand.NewSource(k.Seed))
		r.Shuffle(n, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, k.NSplits)
	foldSize := n / k.NSplits
	remainder := n % k.NSplits

	start := 0
	for f := 0; f < k.NSplits; f++ {
		size := foldSize
		if f < remainder {
			size++
		}
		test := append([]int(nil), indices[start:start+size]...)
		train := make([]int, 0, n-size)
		train = append(train, indices[:start]...)
		train = append(train, indices[start+size:]...)
		folds[f] = Fold{Train: train, Test: test}
		start += size
	}
	return folds
}
