package random

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidWeights is returned for empty or all-zero weight tables.
var ErrInvalidWeights = errors.New("invalid weight table")

// Weights is a discrete distribution: outcome i is drawn with probability
// Weights[i] / Total().
type Weights []uint64

// Uniform returns n equal weights.
func Uniform(n int) Weights {
	w := make(Weights, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

// Validate rejects tables that cannot be sampled.
func (w Weights) Validate() error {
	if len(w) == 0 {
		return ErrInvalidWeights
	}
	var total uint64
	for _, v := range w {
		if total > math.MaxUint64-v {
			return fmt.Errorf("%w: total overflows", ErrInvalidWeights)
		}
		total += v
	}
	if total == 0 {
		return fmt.Errorf("%w: all weights are zero", ErrInvalidWeights)
	}
	return nil
}

// Total is the sum of all weights.
func (w Weights) Total() uint64 {
	var total uint64
	for _, v := range w {
		total += v
	}
	return total
}

// Pick maps x in [0, Total()) onto an outcome index.
func (w Weights) Pick(x uint64) int {
	for i, v := range w {
		if x < v {
			return i
		}
		x -= v
	}
	return len(w) - 1
}
