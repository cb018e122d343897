// Package strategy computes per-strategy oscillators and runs the regime
// machine that turns them into trades and chart markers.
//
// A Strategy is pure: the same bars always produce the same Result.
package strategy

import (
	"errors"
	"fmt"

	"signal-engine/internal/ledger"
	"signal-engine/internal/model"
)

// ErrUnknownMode is returned when no strategy is registered for a mode.
var ErrUnknownMode = errors.New("unknown strategy mode")

// Result is the output of one strategy run over a bar series.
type Result struct {
	Mode        model.Mode                   `json:"mode"`
	Oscillators []model.Oscillator           `json:"oscillators"`
	Trades      []model.Trade                `json:"trades"`
	Markers     []model.Marker               `json:"markers"`
	Overlays    map[string][]model.LinePoint `json:"overlays,omitempty"`
	Events      []ledger.Event               `json:"-"`
}

// Strategy is implemented by every strategy variant.
type Strategy interface {
	// Mode names the trade stream the strategy produces.
	Mode() model.Mode

	// Warmup is the number of bars needed before the first oscillator sample.
	Warmup() int

	// Compute runs the strategy over clean, time-ordered bars.
	Compute(bars []model.Bar) Result
}

// New returns the strategy registered for mode with its default parameters.
func New(mode model.Mode) (Strategy, error) {
	switch mode {
	case model.ModeDefensive:
		return NewXtrender(mode, DefensiveConfig()), nil
	case model.ModeAggressive:
		return NewXtrender(mode, AggressiveConfig()), nil
	case model.ModeQuant:
		return NewXtrender(mode, QuantConfig()), nil
	case model.ModeDitz:
		return NewXtrender(mode, DitzConfig()), nil
	case model.ModeTrader:
		return NewEMAPullback(mode, DefaultEMAPullbackConfig()), nil
	case model.ModeMomentum:
		return NewRSIBand(mode, DefaultRSIBandConfig()), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

// Compute cleans bars and runs the strategy registered for mode.
func Compute(mode model.Mode, bars []model.Bar) (Result, error) {
	s, err := New(mode)
	if err != nil {
		return Result{}, err
	}
	return s.Compute(model.CleanBars(bars)), nil
}

// assemble builds a Result from an oscillator series and the machine's events.
func assemble(mode model.Mode, bars []model.Bar, osc []float64, start int, events []ledger.Event) Result {
	res := Result{
		Mode:        mode,
		Oscillators: oscillators(bars, osc, start),
		Trades:      ledger.Build(events, bars),
		Markers:     markers(events),
		Events:      events,
	}
	return res
}

func oscillators(bars []model.Bar, osc []float64, start int) []model.Oscillator {
	if start < 0 {
		start = 0
	}
	out := make([]model.Oscillator, 0, max(len(bars)-start, 0))
	for i := start; i < len(bars) && i < len(osc); i++ {
		prev := osc[i]
		if i > 0 {
			prev = osc[i-1]
		}
		class, color := classify(osc[i], prev)
		out = append(out, model.Oscillator{Time: bars[i].Time, Value: osc[i], Class: class, Color: color})
	}
	return out
}

func line(bars []model.Bar, values []float64, start int) []model.LinePoint {
	out := make([]model.LinePoint, 0, max(len(bars)-start, 0))
	for i := max(start, 0); i < len(bars) && i < len(values); i++ {
		out = append(out, model.LinePoint{Time: bars[i].Time, Value: values[i]})
	}
	return out
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
