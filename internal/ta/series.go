package ta

import "math"

// Every series below has the same length as its input and is causal:
// element i depends on inputs 0..i only. Undefined elements are NaN.

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMASeries is the simple moving average over a window of n closes.
func SMASeries(closes []float64, n int) []float64 {
	out := nanSeries(len(closes))
	if n <= 0 || len(closes) < n {
		return out
	}
	sum := 0.0
	for i, c := range closes {
		sum += c
		if i >= n {
			sum -= closes[i-n]
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// EMASeries seeds with the SMA of the first n closes, then applies k=2/(n+1).
func EMASeries(closes []float64, n int) []float64 {
	out := nanSeries(len(closes))
	if n <= 0 || len(closes) < n {
		return out
	}
	k := 2.0 / float64(n+1)
	seed := 0.0
	for i := 0; i < n; i++ {
		seed += closes[i]
	}
	prev := seed / float64(n)
	out[n-1] = prev
	for i := n; i < len(closes); i++ {
		prev = (closes[i]-prev)*k + prev
		out[i] = prev
	}
	return out
}

// RSISeries is Wilder's RSI; the first value is at index n.
func RSISeries(closes []float64, n int) []float64 {
	out := nanSeries(len(closes))
	if n <= 0 || len(closes) < n+1 {
		return out
	}
	gain, loss := 0.0, 0.0
	for i := 1; i <= n; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain /= float64(n)
	loss /= float64(n)
	out[n] = rsiValue(gain, loss)
	for i := n + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		gain = (gain*float64(n-1) + g) / float64(n)
		loss = (loss*float64(n-1) + l) / float64(n)
		out[i] = rsiValue(gain, loss)
	}
	return out
}

func rsiValue(gain, loss float64) float64 {
	if loss == 0 {
		if gain == 0 {
			return 50.0
		}
		return 100.0
	}
	return 100.0 * gain / (gain + loss)
}

// RollingMax is max(vals[i-w+1..i]); the window is truncated at the start
// of the series so element 0 is defined.
func RollingMax(vals []float64, w int) []float64 {
	return rolling(vals, w, math.Max)
}

// RollingMin is min(vals[i-w+1..i]) with the same truncation as RollingMax.
func RollingMin(vals []float64, w int) []float64 {
	return rolling(vals, w, math.Min)
}

func rolling(vals []float64, w int, pick func(a, b float64) float64) []float64 {
	out := nanSeries(len(vals))
	if w <= 0 {
		return out
	}
	for i := range vals {
		start := i - w + 1
		if start < 0 {
			start = 0
		}
		v := vals[start]
		for j := start + 1; j <= i; j++ {
			v = pick(v, vals[j])
		}
		out[i] = v
	}
	return out
}
