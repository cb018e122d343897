package strategy

import (
	"signal-engine/internal/indicator"
	"signal-engine/internal/model"
)

// EMAPullbackConfig parameterises the EMA trend pullback strategy.
type EMAPullbackConfig struct {
	Fast       int
	Slow       int
	RiskReward float64
	Cooldown   int
}

// DefaultEMAPullbackConfig returns 9/21 EMAs with a 2R target.
func DefaultEMAPullbackConfig() EMAPullbackConfig {
	return EMAPullbackConfig{Fast: 9, Slow: 21, RiskReward: 2, Cooldown: 5}
}

// EMAPullback trades pullbacks to the fast EMA while the fast EMA is above
// the slow one. The oscillator is the EMA spread in percent of the slow EMA.
type EMAPullback struct {
	mode model.Mode
	cfg  EMAPullbackConfig
}

// NewEMAPullback creates an EMA pullback strategy for mode.
func NewEMAPullback(mode model.Mode, cfg EMAPullbackConfig) *EMAPullback {
	return &EMAPullback{mode: mode, cfg: cfg}
}

func (e *EMAPullback) Mode() model.Mode { return e.mode }
func (e *EMAPullback) Warmup() int      { return max(e.cfg.Fast, e.cfg.Slow) - 1 }

func (e *EMAPullback) Compute(bars []model.Bar) Result {
	closes := model.Closes(bars)
	fast := indicator.EMA(closes, e.cfg.Fast)
	slow := indicator.EMA(closes, e.cfg.Slow)

	spread := make([]float64, len(closes))
	for i := range spread {
		if slow[i] != 0 {
			spread[i] = (fast[i] - slow[i]) / slow[i] * 100
		}
	}

	start := e.Warmup()
	rules := Rules{
		Start:      start,
		Basis:      fast,
		RiskReward: e.cfg.RiskReward,
		Cooldown:   e.cfg.Cooldown,
		Bias:       func(i int) int { return sign(spread[i]) },
	}

	res := assemble(e.mode, bars, spread, start, Run(bars, rules))
	res.Overlays = map[string][]model.LinePoint{
		"ema_fast": line(bars, fast, start),
		"ema_slow": line(bars, slow, start),
	}
	return res
}

// RSIBandConfig parameterises the RSI band strategy.
type RSIBandConfig struct {
	RSIPeriod  int
	Upper      float64
	Lower      float64
	T3Period   int
	RiskReward float64
	Cooldown   int
}

// DefaultRSIBandConfig returns RSI(14) with a 55/45 band and a T3(8) basis.
func DefaultRSIBandConfig() RSIBandConfig {
	return RSIBandConfig{RSIPeriod: 14, Upper: 55, Lower: 45, T3Period: 8, RiskReward: 1.5, Cooldown: 3}
}

// RSIBand turns bullish when RSI closes above the upper band and bearish
// below the lower band, and buys pullbacks to a T3 of the close in between.
// The oscillator is RSI - 50.
type RSIBand struct {
	mode model.Mode
	cfg  RSIBandConfig
}

// NewRSIBand creates an RSI band strategy for mode.
func NewRSIBand(mode model.Mode, cfg RSIBandConfig) *RSIBand {
	return &RSIBand{mode: mode, cfg: cfg}
}

func (b *RSIBand) Mode() model.Mode { return b.mode }
func (b *RSIBand) Warmup() int      { return max(b.cfg.RSIPeriod, b.cfg.T3Period-1) }

func (b *RSIBand) Compute(bars []model.Bar) Result {
	closes := model.Closes(bars)
	rsi := indicator.RSI(closes, b.cfg.RSIPeriod)
	basis := indicator.T3(closes, b.cfg.T3Period)

	start := b.Warmup()
	rules := Rules{
		Start:      start,
		Basis:      basis,
		RiskReward: b.cfg.RiskReward,
		Cooldown:   b.cfg.Cooldown,
		Bias: func(i int) int {
			switch {
			case rsi[i] > b.cfg.Upper:
				return 1
			case rsi[i] < b.cfg.Lower:
				return -1
			}
			return 0
		},
	}

	res := assemble(b.mode, bars, indicator.Shift(rsi, -50), start, Run(bars, rules))
	res.Overlays = map[string][]model.LinePoint{
		"t3": line(bars, basis, start),
	}
	return res
}
