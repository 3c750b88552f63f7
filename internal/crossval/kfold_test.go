package crossval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKFoldSplit(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		splits  int
		shuffle bool
	}{
		{"even split", 20, 5, false},
		{"uneven split", 23, 5, false},
		{"shuffled", 17, 4, true},
		{"defaulted splits", 10, 1, false}, // falls back to 5
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kf := NewKFold(tt.splits, tt.shuffle, 7)
			folds := kf.Split(tt.n)
			require.Equal(t, kf.NSplits, len(folds))

			seen := make(map[int]int)
			for _, fold := range folds {
				assert.Equal(t, tt.n, len(fold.Train)+len(fold.Test))
				for _, idx := range fold.Test {
					seen[idx]++
				}

				inTrain := make(map[int]bool, len(fold.Train))
				for _, idx := range fold.Train {
					inTrain[idx] = true
				}
				for _, idx := range fold.Test {
					assert.False(t, inTrain[idx], "row %d in both train and test", idx)
				}
			}

			require.Equal(t, tt.n, len(seen), "every row must be tested")
			for idx, count := range seen {
				assert.Equal(t, 1, count, "row %d tested %d times", idx, count)
			}
		})
	}
}

func TestKFoldShuffleDeterminism(t *testing.T) {
	a := NewKFold(4, true, 99).Split(16)
	b := NewKFold(4, true, 99).Split(16)
	assert.Equal(t, a, b)
}
