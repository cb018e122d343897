package indicator

// RMA calculates Wilder's running moving average (alpha = 1/period).
//
// Unlike EMA the indices before the seed stay 0. That run-in decides where
// an RSI built on RMA first becomes valid, so it must not be back-filled.
func RMA(data []float64, period int) []float64 {
	out := make([]float64, len(data))
	if period <= 0 || len(data) < period {
		return out
	}

	out[period-1] = mean(data[:period])
	p := float64(period)
	for i := period; i < len(data); i++ {
		out[i] = (out[i-1]*(p-1) + data[i]) / p
	}
	return out
}
