package strategy

import (
	"math"

	"signal-engine/internal/ledger"
	"signal-engine/internal/model"
)

// Rules parameterise the generic long-only regime machine. Every strategy
// variant is a set of Rules over its own oscillator.
type Rules struct {
	// Start is the first bar index the machine evaluates.
	Start int

	// Bias returns +1 (bullish), -1 (bearish) or 0 (keep the current regime)
	// at the close of bar i.
	Bias func(i int) int

	// Filter gates entries at bar i. Nil admits every bar.
	Filter func(i int) bool

	// Basis enables pullback entries: while bullish, a low touching the basis
	// arms the setup and a close above the tracked swing high triggers it.
	// Without a basis the first admitted bar of each bullish regime enters.
	Basis []float64

	// StopPct places the stop that many percent below the fill price.
	StopPct float64
	// StopLookback places the stop at the lowest low of the last N bars up
	// to the signal bar. Pullback entries use the pullback low instead.
	StopLookback int
	// RiskReward sets the target at entry + RiskReward*(entry-stop).
	RiskReward float64
	// Cooldown is the minimum number of bars between two entry fills.
	Cooldown int
}

type phase int

const (
	phaseIdle     phase = iota // not bullish
	phaseArmed                 // bullish, waiting for the setup
	phasePullback              // basis touched, waiting for the breakout
	phaseSpent                 // direct entry already taken this regime
)

type position struct {
	stop   float64
	target float64
}

// touched checks the bar against stop then target. A gap through a level
// fills at the open.
func (p *position) touched(bar model.Bar) (float64, string, bool) {
	if p.stop > 0 && bar.Low <= p.stop {
		return math.Min(bar.Open, p.stop), ledger.ReasonStop, true
	}
	if p.target > 0 && bar.High >= p.target {
		return math.Max(bar.Open, p.target), ledger.ReasonTarget, true
	}
	return 0, "", false
}

type pendingEntry struct {
	stop float64
}

// Run steps the machine over bars. Each bar is processed in a fixed order:
// pending fills at the open (exit before entry), intrabar stop/target,
// regime update at the close, then entry evaluation on the freed state.
// Signals raised at a close fill at the next bar's open.
func Run(bars []model.Bar, r Rules) []ledger.Event {
	var (
		events    []ledger.Event
		pos       *position
		entry     *pendingEntry
		exitNext  bool
		regime    int
		ph        = phaseIdle
		swingHigh float64
		pullLow   float64
		lastEntry = -1
	)

	if r.Bias == nil {
		return nil
	}

	start := r.Start
	if start < 0 {
		start = 0
	}

	for i := start; i < len(bars); i++ {
		bar := bars[i]

		// fills at the open
		if exitNext && pos != nil {
			events = append(events, fill(ledger.Exit, i, bar, bar.Open, ledger.ReasonFlip))
			pos = nil
		}
		exitNext = false

		if entry != nil && pos == nil {
			if p, ok := r.open(bar.Open, entry.stop); ok {
				pos = p
				lastEntry = i
				events = append(events, fill(ledger.Entry, i, bar, bar.Open, ledger.ReasonSignal))
			}
		}
		entry = nil

		// intrabar exits
		if pos != nil {
			if price, reason, hit := pos.touched(bar); hit {
				events = append(events, fill(ledger.Exit, i, bar, price, reason))
				pos = nil
			}
		}

		// regime at the close
		prev := regime
		if b := r.Bias(i); b != 0 {
			regime = b
		}
		switch {
		case prev == 0 && regime == 1:
			// first known regime: no entry mid-trend for direct rules
			ph = phaseSpent
			if r.Basis != nil {
				ph = phaseArmed
			}
			swingHigh = bar.High
		case prev != regime && regime == -1:
			if pos != nil {
				exitNext = true
			}
			ph = phaseIdle
		case prev != regime && regime == 1:
			ph = phaseArmed
			swingHigh = bar.High
		}

		if regime != 1 {
			continue
		}

		// entries on the state left after exits
		flat := pos == nil
		if r.Basis == nil {
			if ph == phaseArmed && flat && r.cooled(i, lastEntry) && r.admits(i) {
				entry = &pendingEntry{stop: r.lookbackLow(bars, i)}
				ph = phaseSpent
			}
			continue
		}

		switch ph {
		case phaseArmed:
			if flat && r.Basis[i] > 0 && bar.Low <= r.Basis[i] {
				ph = phasePullback
				pullLow = bar.Low
			} else {
				swingHigh = math.Max(swingHigh, bar.High)
			}
		case phasePullback:
			pullLow = math.Min(pullLow, bar.Low)
			if bar.Close > swingHigh {
				if flat && r.cooled(i, lastEntry) && r.admits(i) {
					entry = &pendingEntry{stop: pullLow}
				}
				ph = phaseArmed
				swingHigh = bar.High
			}
		}
	}
	return events
}

// open sizes stop and target around the fill. A stop at or above the fill
// invalidates the entry.
func (r *Rules) open(price, stop float64) (*position, bool) {
	if r.StopPct > 0 {
		stop = price * (1 - r.StopPct/100)
	}
	if stop > 0 && stop >= price {
		return nil, false
	}
	p := &position{stop: stop}
	if r.RiskReward > 0 && stop > 0 {
		p.target = price + r.RiskReward*(price-stop)
	}
	return p, true
}

func (r *Rules) admits(i int) bool {
	return r.Filter == nil || r.Filter(i)
}

// cooled reports whether an entry signalled at i (filled at i+1) respects
// the cooldown since the last fill.
func (r *Rules) cooled(i, lastEntry int) bool {
	return lastEntry < 0 || i+1-lastEntry >= r.Cooldown
}

func (r *Rules) lookbackLow(bars []model.Bar, i int) float64 {
	if r.StopLookback <= 0 {
		return 0
	}
	from := i - r.StopLookback + 1
	if from < 0 {
		from = 0
	}
	low := bars[from].Low
	for _, b := range bars[from+1 : i+1] {
		low = math.Min(low, b.Low)
	}
	return low
}

func fill(kind ledger.Kind, i int, bar model.Bar, price float64, reason string) ledger.Event {
	return ledger.Event{Kind: kind, Index: i, Time: bar.Time, Price: price, Reason: reason}
}
