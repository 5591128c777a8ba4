// Package ta computes the causal indicator columns the signal classifier
// reads: EMA, SMA, Wilder RSI and rolling extremes.
package ta

import "math"

// RSI returns the latest Wilder RSI value.
func RSI(closes []float64, period int) float64 {
	s := RSISeries(closes, period)
	if len(s) == 0 {
		return math.NaN()
	}
	return s[len(s)-1]
}
