package indicator

// T3VolumeFactor is the Tillson volume factor b.
const T3VolumeFactor = 0.7

// T3 calculates Tillson's T3: six cascaded EMAs combined as
//
//	T3 = c1*e6 + c2*e5 + c3*e4 + c4*e3
//
// with c1 = -b³, c2 = 3b²+3b³, c3 = -6b²-3b-3b³, c4 = 1+3b+b³+3b².
// The coefficients sum to 1, so a constant series maps to itself.
func T3(data []float64, period int) []float64 {
	if period <= 0 || len(data) < period {
		return fill(len(data), 0)
	}

	b := T3VolumeFactor
	b2, b3 := b*b, b*b*b
	c1 := -b3
	c2 := 3*b2 + 3*b3
	c3 := -6*b2 - 3*b - 3*b3
	c4 := 1 + 3*b + b3 + 3*b2

	e1 := EMA(data, period)
	e2 := EMA(e1, period)
	e3 := EMA(e2, period)
	e4 := EMA(e3, period)
	e5 := EMA(e4, period)
	e6 := EMA(e5, period)

	out := make([]float64, len(data))
	for i := range out {
		out[i] = c1*e6[i] + c2*e5[i] + c3*e4[i] + c4*e3[i]
	}
	return out
}
