package strategy

import (
	"signal-engine/internal/indicator"
	"signal-engine/internal/model"
)

// XtrenderConfig parameterises the B-Xtrender family.
//
//	short term = RSI(EMA(close, ShortFast) - EMA(close, ShortSlow), ShortRSI) - 50
//	long term  = RSI(EMA(close, LongPeriod), LongRSI) - 50
//	signal     = T3(short term, SignalT3)
type XtrenderConfig struct {
	ShortFast  int
	ShortSlow  int
	ShortRSI   int
	LongPeriod int
	LongRSI    int
	SignalT3   int

	// Slope takes the regime from the histogram's direction instead of its sign.
	Slope bool
	// TrendSMA > 0 admits entries only above SMA(close, TrendSMA) with a
	// positive long term.
	TrendSMA int

	StopPct      float64
	StopLookback int
	RiskReward   float64
}

func baseXtrenderConfig() XtrenderConfig {
	return XtrenderConfig{ShortFast: 5, ShortSlow: 20, ShortRSI: 15, LongPeriod: 20, LongRSI: 15, SignalT3: 5}
}

// DefensiveConfig trades the zero cross of the short term.
func DefensiveConfig() XtrenderConfig { return baseXtrenderConfig() }

// AggressiveConfig trades the turns of the short-term histogram.
func AggressiveConfig() XtrenderConfig {
	c := baseXtrenderConfig()
	c.Slope = true
	return c
}

// QuantConfig adds the long-term/SMA trend filter and a fixed stop.
func QuantConfig() XtrenderConfig {
	c := baseXtrenderConfig()
	c.TrendSMA = 200
	c.StopPct = 8
	return c
}

// DitzConfig uses the quant filter with a swing-low stop and a 2R target.
func DitzConfig() XtrenderConfig {
	c := baseXtrenderConfig()
	c.TrendSMA = 200
	c.StopLookback = 10
	c.RiskReward = 2
	return c
}

// Xtrender is the B-Xtrender strategy family.
type Xtrender struct {
	mode model.Mode
	cfg  XtrenderConfig
}

// NewXtrender creates a B-Xtrender strategy for mode.
func NewXtrender(mode model.Mode, cfg XtrenderConfig) *Xtrender {
	return &Xtrender{mode: mode, cfg: cfg}
}

func (x *Xtrender) Mode() model.Mode { return x.mode }

// Warmup is where both the EMA difference and its RSI are seeded, pushed out
// by the trend SMA when one is configured.
func (x *Xtrender) Warmup() int {
	w := max(x.cfg.ShortSlow, x.cfg.ShortFast) - 1 + x.cfg.ShortRSI
	w = max(w, x.cfg.LongPeriod-1+x.cfg.LongRSI)
	if x.cfg.TrendSMA > 0 {
		w = max(w, x.cfg.TrendSMA-1)
	}
	return w
}

// Series returns the short-term, long-term and T3 signal series.
func (x *Xtrender) Series(closes []float64) (short, long, signal []float64) {
	c := x.cfg
	diff := indicator.Sub(indicator.EMA(closes, c.ShortFast), indicator.EMA(closes, c.ShortSlow))
	short = indicator.Shift(indicator.RSI(diff, c.ShortRSI), -50)
	long = indicator.Shift(indicator.RSI(indicator.EMA(closes, c.LongPeriod), c.LongRSI), -50)
	signal = indicator.T3(short, c.SignalT3)
	return short, long, signal
}

func (x *Xtrender) Compute(bars []model.Bar) Result {
	closes := model.Closes(bars)
	short, long, signal := x.Series(closes)
	start := x.Warmup()

	rules := Rules{
		Start:        start,
		StopPct:      x.cfg.StopPct,
		StopLookback: x.cfg.StopLookback,
		RiskReward:   x.cfg.RiskReward,
		Bias: func(i int) int {
			if x.cfg.Slope {
				if i == 0 {
					return 0
				}
				return sign(short[i] - short[i-1])
			}
			return sign(short[i])
		},
	}
	if x.cfg.TrendSMA > 0 {
		trend := indicator.SMA(closes, x.cfg.TrendSMA)
		rules.Filter = func(i int) bool {
			return long[i] > 0 && trend[i] > 0 && closes[i] > trend[i]
		}
	}

	res := assemble(x.mode, bars, short, start, Run(bars, rules))
	res.Overlays = map[string][]model.LinePoint{
		"signal":    line(bars, signal, start),
		"long_term": line(bars, long, start),
	}
	return res
}
