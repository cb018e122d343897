package strategy

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"signal-engine/internal/model"
)

// syntheticBars returns a noisy sine wave on a slow uptrend, one bar per day.
func syntheticBars(n int) []model.Bar {
	rng := rand.New(rand.NewSource(42))
	bars := make([]model.Bar, n)
	prev := 100.0
	for i := range bars {
		c := 100 + 0.05*float64(i) + 10*math.Sin(float64(i)*2*math.Pi/60) + rng.Float64()
		h := math.Max(prev, c) * (1 + rng.Float64()*0.01)
		l := math.Min(prev, c) * (1 - rng.Float64()*0.01)
		bars[i] = model.Bar{Time: int64(1_600_000_000 + i*86400), Open: prev, High: h, Low: l, Close: c, Volume: 1000}
		prev = c
	}
	return bars
}

func TestCompute_TradeInvariants(t *testing.T) {
	bars := syntheticBars(600)
	opens := make(map[int64]float64, len(bars))
	for _, b := range bars {
		opens[b.Time] = b.Open
	}

	for _, mode := range model.AllModes {
		t.Run(string(mode), func(t *testing.T) {
			s, err := New(mode)
			if err != nil {
				t.Fatalf("New(%s): %v", mode, err)
			}
			res, err := Compute(mode, bars)
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}

			if want := len(bars) - s.Warmup(); len(res.Oscillators) != want {
				t.Errorf("oscillators=%d, want %d", len(res.Oscillators), want)
			}
			if len(res.Markers) != len(res.Events) {
				t.Errorf("markers=%d, events=%d", len(res.Markers), len(res.Events))
			}

			var lastExit int64
			for i, tr := range res.Trades {
				if tr.IsOpen != (tr.ExitDate == nil) {
					t.Errorf("trade %d: IsOpen=%v with ExitDate=%v", i, tr.IsOpen, tr.ExitDate)
				}
				if tr.IsOpen && i != len(res.Trades)-1 {
					t.Errorf("trade %d: open trade is not the last one", i)
				}
				open, ok := opens[tr.EntryDate]
				if !ok || open != tr.EntryPrice {
					t.Errorf("trade %d: entry %.4f at %d is not a bar open", i, tr.EntryPrice, tr.EntryDate)
				}
				if tr.EntryDate < lastExit {
					t.Errorf("trade %d: entry %d before previous exit %d", i, tr.EntryDate, lastExit)
				}
				if tr.ExitDate != nil {
					if *tr.ExitDate < tr.EntryDate {
						t.Errorf("trade %d: exit before entry", i)
					}
					lastExit = *tr.ExitDate
				}
			}
		})
	}
}

func TestCompute_ZeroCrossModesTrade(t *testing.T) {
	bars := syntheticBars(600)
	for _, mode := range []model.Mode{model.ModeDefensive, model.ModeAggressive} {
		res, err := Compute(mode, bars)
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Trades) < 3 {
			t.Errorf("%s: trades=%d, want a trade per swing", mode, len(res.Trades))
		}
	}
}

func TestCompute_ShortInput(t *testing.T) {
	for _, mode := range model.AllModes {
		for _, n := range []int{0, 1, 10} {
			res, err := Compute(mode, syntheticBars(n))
			if err != nil {
				t.Fatalf("%s/%d: %v", mode, n, err)
			}
			if len(res.Oscillators) != 0 || len(res.Trades) != 0 {
				t.Errorf("%s/%d: got %d oscillators, %d trades, want none",
					mode, n, len(res.Oscillators), len(res.Trades))
			}
			if res.Oscillators == nil || res.Trades == nil || res.Markers == nil {
				t.Errorf("%s/%d: nil slices in result", mode, n)
			}
		}
	}
}

func TestCompute_DropsMalformedBars(t *testing.T) {
	bars := syntheticBars(100)
	bars[50].Close = math.NaN()
	res, err := Compute(model.ModeDefensive, bars)
	if err != nil {
		t.Fatal(err)
	}
	s, _ := New(model.ModeDefensive)
	if want := 99 - s.Warmup(); len(res.Oscillators) != want {
		t.Errorf("oscillators=%d, want %d", len(res.Oscillators), want)
	}
}

func TestCompute_UnknownMode(t *testing.T) {
	_, err := Compute(model.Mode("scalper"), syntheticBars(10))
	if !errors.Is(err, ErrUnknownMode) {
		t.Errorf("err = %v, want ErrUnknownMode", err)
	}
}

func TestXtrender_OscillatorClasses(t *testing.T) {
	bars := syntheticBars(200)
	x := NewXtrender(model.ModeDefensive, DefensiveConfig())
	short, _, _ := x.Series(model.Closes(bars))
	res := x.Compute(bars)

	start := x.Warmup()
	for k, o := range res.Oscillators {
		i := start + k
		if o.Time != bars[i].Time || o.Value != short[i] {
			t.Fatalf("oscillator %d = %+v, want value %.4f at %d", k, o, short[i], bars[i].Time)
		}
		rising := short[i] > short[i-1]
		var want string
		switch {
		case short[i] > 0 && rising:
			want = ClassBullRising
		case short[i] > 0:
			want = ClassBullFalling
		case rising:
			want = ClassBearRising
		default:
			want = ClassBearFalling
		}
		if o.Class != want || o.Color == "" {
			t.Errorf("oscillator %d class=%q color=%q, want %q", k, o.Class, o.Color, want)
		}
		if o.Value < -50 || o.Value > 50 {
			t.Errorf("oscillator %d value %.4f outside [-50, 50]", k, o.Value)
		}
	}
}

func TestXtrender_Warmup(t *testing.T) {
	if got := NewXtrender(model.ModeDefensive, DefensiveConfig()).Warmup(); got != 34 {
		t.Errorf("defensive warmup=%d, want 34", got)
	}
	if got := NewXtrender(model.ModeQuant, QuantConfig()).Warmup(); got != 199 {
		t.Errorf("quant warmup=%d, want 199", got)
	}
}
