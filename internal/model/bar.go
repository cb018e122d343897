package model

import "math"

// Bar is one OHLCV bar. Time is the bar open in epoch seconds and must be
// strictly increasing within a series.
type Bar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Valid reports whether the bar can be fed to the calculators.
func (b *Bar) Valid() bool {
	for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.Open > 0 && b.Close > 0 && b.Time > 0
}

// CleanBars drops malformed bars and bars whose time does not advance.
// The input slice is not modified.
func CleanBars(bars []Bar) []Bar {
	out := make([]Bar, 0, len(bars))
	var last int64
	for _, b := range bars {
		if !b.Valid() || b.Time <= last {
			continue
		}
		// a high/low pair that does not bracket open/close is widened
		b.High = math.Max(b.High, math.Max(b.Open, b.Close))
		if b.Low <= 0 || b.Low > math.Min(b.Open, b.Close) {
			b.Low = math.Min(b.Open, b.Close)
		}
		out = append(out, b)
		last = b.Time
	}
	return out
}

// Closes extracts the close series.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Close
	}
	return out
}
