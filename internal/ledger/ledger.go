// Package ledger turns the entry/exit events of a long-only strategy stream
// into trade records.
package ledger

import "signal-engine/internal/model"

// Kind distinguishes entry and exit events.
type Kind int

const (
	Entry Kind = iota + 1
	Exit
)

func (k Kind) String() string {
	switch k {
	case Entry:
		return "entry"
	case Exit:
		return "exit"
	default:
		return "unknown"
	}
}

// Exit reasons.
const (
	ReasonSignal = "signal"
	ReasonFlip   = "flip"
	ReasonStop   = "stop"
	ReasonTarget = "target"
)

// Event is one fill emitted by a strategy machine. Index is the bar index
// the fill happened on.
type Event struct {
	Kind   Kind    `json:"kind"`
	Index  int     `json:"index"`
	Time   int64   `json:"time"`
	Price  float64 `json:"price"`
	Reason string  `json:"reason,omitempty"`
}

// Build pairs events into trades in order. An entry while a trade is open
// and an exit while flat are ignored. A trailing unmatched entry becomes the
// open trade, valued at the close of the last bar.
func Build(events []Event, bars []model.Bar) []model.Trade {
	trades := make([]model.Trade, 0, len(events)/2+1)

	var open *Event
	for i := range events {
		ev := &events[i]
		switch ev.Kind {
		case Entry:
			if open == nil {
				open = ev
			}
		case Exit:
			if open == nil {
				continue
			}
			trades = append(trades, model.Trade{
				EntryDate:  open.Time,
				EntryPrice: open.Price,
				ExitDate:   model.Int64Ptr(ev.Time),
				ExitPrice:  model.Float64Ptr(ev.Price),
				ReturnPct:  ReturnPct(open.Price, ev.Price),
			})
			open = nil
		}
	}

	if open != nil {
		current := open.Price
		if len(bars) > 0 {
			current = bars[len(bars)-1].Close
		}
		trades = append(trades, model.Trade{
			EntryDate:    open.Time,
			EntryPrice:   open.Price,
			CurrentPrice: model.Float64Ptr(current),
			ReturnPct:    ReturnPct(open.Price, current),
			IsOpen:       true,
		})
	}
	return trades
}

// ReturnPct is the percentage move from entry to exit. A zero entry price
// yields 0.
func ReturnPct(entry, exit float64) float64 {
	if entry == 0 {
		return 0
	}
	return (exit - entry) / entry * 100
}
