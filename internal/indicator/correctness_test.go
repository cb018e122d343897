package indicator

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/markcheno/go-talib"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

func assertSeries(t *testing.T, label string, got, want []float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: len=%d, want %d", label, len(got), len(want))
	}
	for i := range want {
		assertClose(t, fmt.Sprintf("%s[%d]", label, i), got[i], want[i], tol)
	}
}

// randomWalk returns a deterministic positive price series.
func randomWalk(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	price := 100.0
	for i := range out {
		price *= 1 + (rng.Float64()-0.5)*0.04
		out[i] = price
	}
	return out
}

// ────────────────────────────────────────────────────────────
// EMA Correctness
// ────────────────────────────────────────────────────────────

func TestEMA_Correctness_Period3(t *testing.T) {
	// EMA(3): multiplier = 2/(3+1) = 0.5
	// Prices: 100, 102, 104, 103, 105
	//
	// Seed at index 2: (100+102+104)/3 = 102.0, back-filled to 0 and 1
	// Index 3: 103*0.5 + 102.0*0.5 = 102.5
	// Index 4: 105*0.5 + 102.5*0.5 = 103.75
	got := EMA([]float64{100, 102, 104, 103, 105}, 3)
	assertSeries(t, "EMA(3)", got, []float64{102, 102, 102, 102.5, 103.75}, 1e-9)
}

func TestEMA_Correctness_Period5(t *testing.T) {
	// EMA(5): multiplier = 1/3
	// Seed = (44+44.25+44.50+43.75+44.50)/5 = 44.20
	// Index 5 (44.25): 44.25/3 + 44.20*2/3 = 44.2167
	// Index 6 (44.00): 44.00/3 + 44.2167*2/3 = 44.1444
	prices := []float64{44, 44.25, 44.50, 43.75, 44.50, 44.25, 44.00}
	got := EMA(prices, 5)

	mult := 2.0 / 6.0
	seed := 44.20
	e5 := 44.25*mult + seed*(1-mult)
	e6 := 44.00*mult + e5*(1-mult)

	for i := 0; i < 5; i++ {
		assertClose(t, "EMA(5) back-fill", got[i], seed, 1e-9)
	}
	assertClose(t, "EMA(5) index 5", got[5], e5, 1e-9)
	assertClose(t, "EMA(5) index 6", got[6], e6, 1e-9)
}

func TestEMA_MatchesTalib(t *testing.T) {
	prices := randomWalk(300, 7)
	for _, period := range []int{5, 20, 50} {
		got := EMA(prices, period)
		want := talib.Ema(prices, period)
		for i := period - 1; i < len(prices); i++ {
			assertClose(t, fmt.Sprintf("EMA(%d)[%d] vs talib", period, i), got[i], want[i], 1e-9)
		}
	}
}

func TestEMA_ShortInput(t *testing.T) {
	got := EMA([]float64{1, 2}, 3)
	assertSeries(t, "EMA short", got, []float64{0, 0}, 0)

	if got := EMA(nil, 3); len(got) != 0 {
		t.Errorf("EMA(nil): len=%d, want 0", len(got))
	}
	assertSeries(t, "EMA period 0", EMA([]float64{1, 2}, 0), []float64{0, 0}, 0)
}

// ────────────────────────────────────────────────────────────
// RMA Correctness (Wilder's Smoothing)
// ────────────────────────────────────────────────────────────

func TestRMA_Correctness_Period3(t *testing.T) {
	// Seed at index 2: (100+102+104)/3 = 102.0, no back-fill
	// Index 3: (102.0*2 + 103)/3 = 102.3333
	// Index 4: (102.3333*2 + 105)/3 = 103.2222
	got := RMA([]float64{100, 102, 104, 103, 105}, 3)
	assertSeries(t, "RMA(3)", got, []float64{0, 0, 102, 102.3333, 103.2222}, 0.0001)
}

func TestRMA_ShortInput(t *testing.T) {
	assertSeries(t, "RMA short", RMA([]float64{5, 6}, 3), []float64{0, 0}, 0)
}

func TestSmoothing_ConstantInput(t *testing.T) {
	for _, period := range []int{1, 2, 3, 9, 14, 50} {
		for _, c := range []float64{0, 1, 42.5, 1234.5678} {
			data := fill(period+30, c)
			label := fmt.Sprintf("p=%d c=%g", period, c)

			ema := EMA(data, period)
			for i, v := range ema {
				assertClose(t, fmt.Sprintf("EMA %s [%d]", label, i), v, c, 1e-9)
			}

			rma := RMA(data, period)
			for i, v := range rma {
				if i < period-1 {
					if v != 0 {
						t.Errorf("RMA %s [%d] = %v before seed, want 0", label, i, v)
					}
					continue
				}
				assertClose(t, fmt.Sprintf("RMA %s [%d]", label, i), v, c, 1e-9)
			}
		}
	}
}

// ────────────────────────────────────────────────────────────
// RSI Correctness
// ────────────────────────────────────────────────────────────

func TestRSI_Correctness_Period2(t *testing.T) {
	// Prices: 1, 2, 3, 2, 3 → deltas +1, +1, -1, +1
	// gains  = 1, 1, 0, 1   → RMA(2) = _, 1.00, 0.50, 0.75
	// losses = 0, 0, 1, 0   → RMA(2) = _, 0.00, 0.50, 0.25
	// Index 2: no losses → 100
	// Index 3: RS = 1 → 50
	// Index 4: RS = 3 → 75
	got := RSI([]float64{1, 2, 3, 2, 3}, 2)
	assertSeries(t, "RSI(2)", got, []float64{50, 50, 100, 50, 75}, 1e-9)
}

func TestRSI_MatchesTalib(t *testing.T) {
	prices := randomWalk(300, 11)
	for _, period := range []int{2, 14, 15} {
		got := RSI(prices, period)
		want := talib.Rsi(prices, period)
		for i := 0; i < period; i++ {
			assertClose(t, fmt.Sprintf("RSI(%d)[%d] run-in", period, i), got[i], NeutralRSI, 0)
		}
		for i := period; i < len(prices); i++ {
			assertClose(t, fmt.Sprintf("RSI(%d)[%d] vs talib", period, i), got[i], want[i], 1e-9)
		}
	}
}

func TestRSI_NoLosses(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15, 16}
	got := RSI(prices, 3)
	for i := 3; i < len(prices); i++ {
		assertClose(t, "RSI rising", got[i], 100, 0)
	}
}

func TestRSI_Flat(t *testing.T) {
	got := RSI([]float64{10, 10, 10, 10, 10, 10}, 3)
	for i, v := range got {
		assertClose(t, fmt.Sprintf("RSI flat[%d]", i), v, NeutralRSI, 0)
	}
}

func TestRSI_ShortInput(t *testing.T) {
	assertSeries(t, "RSI short", RSI([]float64{1, 2, 3}, 14), []float64{50, 50, 50}, 0)
}

// ────────────────────────────────────────────────────────────
// T3 / SMA
// ────────────────────────────────────────────────────────────

func TestT3_CoefficientsSumToOne(t *testing.T) {
	data := make([]float64, 40)
	for i := range data {
		data[i] = 42
	}
	got := T3(data, 5)
	for i, v := range got {
		assertClose(t, fmt.Sprintf("T3 constant[%d]", i), v, 42, 1e-9)
	}
}

func TestT3_TracksTrend(t *testing.T) {
	data := make([]float64, 120)
	for i := range data {
		data[i] = float64(i)
	}
	got := T3(data, 5)
	// A cascade of lagging averages stays below a rising line and keeps rising.
	for i := 60; i < len(data); i++ {
		if got[i] >= data[i] {
			t.Errorf("T3[%d]=%.4f not below input %.4f", i, got[i], data[i])
		}
		if got[i] <= got[i-1] {
			t.Errorf("T3[%d]=%.4f not rising from %.4f", i, got[i], got[i-1])
		}
	}
}

func TestT3_ShortInput(t *testing.T) {
	assertSeries(t, "T3 short", T3([]float64{1, 2, 3}, 5), []float64{0, 0, 0}, 0)
}

func TestSMA_Correctness_Period3(t *testing.T) {
	// (100+102+104)/3 = 102, (102+104+103)/3 = 103, (104+103+105)/3 = 104
	got := SMA([]float64{100, 102, 104, 103, 105}, 3)
	assertSeries(t, "SMA(3)", got, []float64{0, 0, 102, 103, 104}, 1e-9)
}

func TestSMA_MatchesTalib(t *testing.T) {
	prices := randomWalk(250, 3)
	got := SMA(prices, 20)
	want := talib.Sma(prices, 20)
	for i := 19; i < len(prices); i++ {
		assertClose(t, fmt.Sprintf("SMA(20)[%d] vs talib", i), got[i], want[i], 1e-9)
	}
}

func TestSubShift(t *testing.T) {
	assertSeries(t, "Sub", Sub([]float64{5, 7, 9}, []float64{1, 2}), []float64{4, 5}, 0)
	assertSeries(t, "Shift", Shift([]float64{60, 40}, -50), []float64{10, -10}, 0)
}
