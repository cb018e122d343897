// Package signal reduces a strategy stream (oscillator samples plus trade
// ledger) to one discrete label per symbol.
package signal

import (
	"sort"

	"signal-engine/internal/model"
)

// Result is the classification of one stream. Bars counts how long the
// current state has lasted, in oscillator samples.
type Result struct {
	Signal model.Label `json:"signal"`
	Bars   int         `json:"bars"`
}

// Fresh is the largest Bars value still reported as BUY or SELL.
const Fresh = 2

var (
	wait   = Result{Signal: model.LabelWait}
	noData = Result{Signal: model.LabelNoData}
)

// NoData is the result for a symbol whose history provider returned no bars.
func NoData() Result { return noData }

// MinBars is the number of oscillator samples a mode needs before it
// classifies anything but WAIT.
func MinBars(mode model.Mode) int {
	switch mode {
	case model.ModeDefensive, model.ModeAggressive:
		return 2
	case model.ModeQuant, model.ModeDitz:
		return 3
	default:
		return 4
	}
}

// Classify labels a stream as of the reference time asOf (epoch seconds).
// Samples and trades after asOf are ignored; asOf <= 0 uses everything.
func Classify(mode model.Mode, osc []model.Oscillator, trades []model.Trade, asOf int64) Result {
	osc = truncate(osc, asOf)
	switch mode {
	case model.ModeDefensive, model.ModeAggressive:
		return ByBarCount(osc, MinBars(mode))
	case model.ModeQuant:
		return classifyQuant(osc, trades, asOf)
	case model.ModeDitz:
		return classifyDitz(osc, trades, asOf)
	case model.ModeTrader, model.ModeMomentum:
		return ByTradeRecency(osc, trades, asOf, MinBars(mode))
	}
	return wait
}

func classifyQuant(osc []model.Oscillator, trades []model.Trade, asOf int64) Result {
	return ByTradeRecency(osc, trades, asOf, MinBars(model.ModeQuant))
}

// ditz shares the quant entry rules, so it reports the quant signal.
func classifyDitz(osc []model.Oscillator, trades []model.Trade, asOf int64) Result {
	return classifyQuant(osc, trades, asOf)
}

// ByBarCount labels by the run of trailing samples sharing the sign of the
// last one. A zero sample counts as negative.
func ByBarCount(osc []model.Oscillator, minBars int) Result {
	if len(osc) < minBars || len(osc) == 0 {
		return wait
	}

	positive := osc[len(osc)-1].Value > 0
	run := 0
	for i := len(osc) - 1; i >= 0 && (osc[i].Value > 0) == positive; i-- {
		run++
	}

	switch {
	case positive && run <= Fresh:
		return Result{Signal: model.LabelBuy, Bars: run}
	case positive:
		return Result{Signal: model.LabelHold, Bars: run}
	case run <= Fresh:
		return Result{Signal: model.LabelSell, Bars: run}
	default:
		return Result{Signal: model.LabelWait, Bars: run}
	}
}

// ByTradeRecency labels by the most recently touched trade, measured in
// samples back from the last one. A fresh entry (0 or 1 samples ago) is BUY
// and an older open trade HOLD; a fresh exit is SELL and an older one WAIT.
// A date missing from the sample times reports 0 bars.
func ByTradeRecency(osc []model.Oscillator, trades []model.Trade, asOf int64, minBars int) Result {
	if len(osc) < minBars || len(osc) == 0 {
		return wait
	}

	tr, ok := mostRecent(trades, asOf)
	if !ok {
		return wait
	}

	last := len(osc) - 1
	if tr.ExitDate == nil || (asOf > 0 && *tr.ExitDate > asOf) {
		idx := indexOf(osc, tr.EntryDate)
		if idx < 0 {
			return Result{Signal: model.LabelHold}
		}
		if d := last - idx; d > 1 {
			return Result{Signal: model.LabelHold, Bars: d}
		}
		return Result{Signal: model.LabelBuy, Bars: last - idx}
	}

	idx := indexOf(osc, *tr.ExitDate)
	if idx < 0 {
		return wait
	}
	if d := last - idx; d > 1 {
		return Result{Signal: model.LabelWait, Bars: d}
	}
	return Result{Signal: model.LabelSell, Bars: last - idx}
}

// mostRecent picks the trade with the latest entry or exit at or before asOf.
// Later trades win ties.
func mostRecent(trades []model.Trade, asOf int64) (model.Trade, bool) {
	var (
		best    model.Trade
		bestTS  int64
		matched bool
	)
	for _, tr := range trades {
		if asOf > 0 && tr.EntryDate > asOf {
			continue
		}
		ts := tr.EntryDate
		if tr.ExitDate != nil && *tr.ExitDate > ts && (asOf <= 0 || *tr.ExitDate <= asOf) {
			ts = *tr.ExitDate
		}
		if !matched || ts >= bestTS {
			best, bestTS, matched = tr, ts, true
		}
	}
	return best, matched
}

func truncate(osc []model.Oscillator, asOf int64) []model.Oscillator {
	if asOf <= 0 {
		return osc
	}
	n := sort.Search(len(osc), func(i int) bool { return osc[i].Time > asOf })
	return osc[:n]
}

func indexOf(osc []model.Oscillator, ts int64) int {
	i := sort.Search(len(osc), func(i int) bool { return osc[i].Time >= ts })
	if i < len(osc) && osc[i].Time == ts {
		return i
	}
	return -1
}
