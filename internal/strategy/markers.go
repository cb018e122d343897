package strategy

import (
	"signal-engine/internal/ledger"
	"signal-engine/internal/model"
)

// Oscillator colour classes.
const (
	ClassBullRising  = "bull_rising"
	ClassBullFalling = "bull_falling"
	ClassBearRising  = "bear_rising"
	ClassBearFalling = "bear_falling"
)

var classColors = map[string]string{
	ClassBullRising:  "#00E676",
	ClassBullFalling: "#1B5E20",
	ClassBearRising:  "#FF8A80",
	ClassBearFalling: "#B71C1C",
}

// classify buckets a histogram sample by sign and by direction against the
// previous sample.
func classify(v, prev float64) (string, string) {
	var class string
	switch {
	case v > 0 && v > prev:
		class = ClassBullRising
	case v > 0:
		class = ClassBullFalling
	case v > prev:
		class = ClassBearRising
	default:
		class = ClassBearFalling
	}
	return class, classColors[class]
}

func markers(events []ledger.Event) []model.Marker {
	out := make([]model.Marker, 0, len(events))
	for _, ev := range events {
		if ev.Kind == ledger.Entry {
			out = append(out, model.Marker{
				Time: ev.Time, Position: "belowBar", Shape: "arrowUp", Text: "BUY", Color: "#26a69a",
			})
			continue
		}
		text := "SELL"
		switch ev.Reason {
		case ledger.ReasonStop:
			text = "SL"
		case ledger.ReasonTarget:
			text = "TP"
		}
		out = append(out, model.Marker{
			Time: ev.Time, Position: "aboveBar", Shape: "arrowDown", Text: text, Color: "#ef5350",
		})
	}
	return out
}
