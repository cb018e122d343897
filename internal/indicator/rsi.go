package indicator

// NeutralRSI is returned wherever RSI has no defined value.
const NeutralRSI = 50.0

// RSI calculates the Relative Strength Index with Wilder smoothing.
//
// Gains and losses are taken from consecutive deltas, so the first value
// appears at index period. Earlier indices hold NeutralRSI. A window with
// no losses reads 100, and a flat window with neither gains nor losses
// reads NeutralRSI.
func RSI(data []float64, period int) []float64 {
	out := fill(len(data), NeutralRSI)
	if period <= 0 || len(data) <= period {
		return out
	}

	n := len(data) - 1
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < len(data); i++ {
		delta := data[i] - data[i-1]
		if delta > 0 {
			gains[i-1] = delta
		} else {
			losses[i-1] = -delta
		}
	}

	avgGain := RMA(gains, period)
	avgLoss := RMA(losses, period)
	for j := period - 1; j < n; j++ {
		out[j+1] = rsiValue(avgGain[j], avgLoss[j])
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain > 0 {
			return 100
		}
		return NeutralRSI
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
