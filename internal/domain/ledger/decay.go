package ledger

import (
	"fmt"
	"math"
)

// zeroEpsilon snaps exponential tails to exactly zero.
const zeroEpsilon = 1e-9

// DecayFunc returns the score after elapsedSeconds at rate. It must be monotone
// non-increasing in elapsed time and never return a negative value.
type DecayFunc func(score, rate, elapsedSeconds float64) float64

// Linear subtracts rate points per second.
func Linear(score, rate, elapsedSeconds float64) float64 {
	return math.Max(0, score-rate*elapsedSeconds)
}

// Exponential multiplies by exp(-rate*t) and snaps tiny remainders to zero.
func Exponential(score, rate, elapsedSeconds float64) float64 {
	v := score * math.Exp(-rate*elapsedSeconds)
	if v < zeroEpsilon {
		return 0
	}
	return v
}

// DecayByName resolves "linear" or "exponential".
func DecayByName(name string) (DecayFunc, error) {
	switch name {
	case "", "linear":
		return Linear, nil
	case "exponential":
		return Exponential, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDecay, name)
	}
}
