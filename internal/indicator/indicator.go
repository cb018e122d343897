// Package indicator provides the smoothing primitives the strategy
// calculators are built from.
//
// Every function takes a series and returns a new series of the same length.
// Inputs shorter than the period yield a series of the fallback value
// (0, or 50 for RSI) instead of an error.
package indicator

// fill returns a slice of n copies of v.
func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	if v != 0 {
		for i := range out {
			out[i] = v
		}
	}
	return out
}

func mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// Sub returns a[i] - b[i] over the shorter of the two series.
func Sub(a, b []float64) []float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] - b[i]
	}
	return out
}

// Shift adds delta to every element.
func Shift(data []float64, delta float64) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = v + delta
	}
	return out
}
