package round

import "math"

// HalfUp4 rounds a score to four decimal places, half-up. Scores in this
// system live in [0,1]; for non-negative inputs math.Round is exactly
// half-up, which keeps parity with the stored success-rate and confidence
// values produced by the matching backends.
func HalfUp4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
