package indicator

import "github.com/markcheno/go-talib"

// EMA calculates the Exponential Moving Average.
//
// The seed at index period-1 is the SMA of the first period values and
// the indices before it are back-filled with the seed, so the output has
// no zero run-in. After the seed:
//
//	EMA[i] = data[i]*k + EMA[i-1]*(1-k),  k = 2/(period+1)
func EMA(data []float64, period int) []float64 {
	if period <= 0 || len(data) < period {
		return fill(len(data), 0)
	}
	if period == 1 {
		return append([]float64(nil), data...)
	}

	out := talib.Ema(data, period)
	for i := 0; i < period-1; i++ {
		out[i] = out[period-1]
	}
	return out
}
