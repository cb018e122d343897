package indicator

import "github.com/markcheno/go-talib"

// SMA calculates the Simple Moving Average over a rolling window.
// Indices before the window fills are 0.
func SMA(data []float64, period int) []float64 {
	if period <= 0 || len(data) < period {
		return make([]float64, len(data))
	}
	if period == 1 {
		return append([]float64(nil), data...)
	}
	return talib.Sma(data, period)
}
