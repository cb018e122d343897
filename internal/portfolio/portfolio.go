// Package portfolio aggregates persisted trade rows of many (mode, symbol)
// streams into per-mode performance statistics.
package portfolio

import (
	"sort"

	"signal-engine/internal/model"
)

// Stats summarises a set of trades by their percentage returns.
// A return of exactly 0 is neither a win nor a loss.
type Stats struct {
	Mode        model.Mode  `json:"mode,omitempty"`
	Trades      int         `json:"tradeCount"`
	Wins        int         `json:"wins"`
	Losses      int         `json:"losses"`
	WinRate     float64     `json:"winRate"`
	AvgReturn   float64     `json:"avgReturn"`
	TotalReturn float64     `json:"totalReturn"`
	AvgWin      float64     `json:"avgWin"`
	AvgLoss     float64     `json:"avgLoss"`
	RiskReward  model.Ratio `json:"riskReward"`
	OpenTrades  int         `json:"openTrades"`
}

// StatsOf computes Stats over trades.
func StatsOf(trades []model.Trade) Stats {
	returns := make([]float64, len(trades))
	open := 0
	for i, t := range trades {
		returns[i] = t.ReturnPct
		if t.IsOpen {
			open++
		}
	}
	s := Summarize(returns)
	s.OpenTrades = open
	return s
}

// Summarize computes Stats over raw values. It is shared by the percentage
// statistics here and the dollar statistics of the simulator.
func Summarize(values []float64) Stats {
	var s Stats
	var winSum, lossSum float64
	for _, v := range values {
		s.TotalReturn += v
		switch {
		case v > 0:
			s.Wins++
			winSum += v
		case v < 0:
			s.Losses++
			lossSum -= v
		}
	}

	s.Trades = len(values)
	if s.Trades == 0 {
		return s
	}
	s.WinRate = float64(s.Wins) / float64(s.Trades) * 100
	s.AvgReturn = s.TotalReturn / float64(s.Trades)
	if s.Wins > 0 {
		s.AvgWin = winSum / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = lossSum / float64(s.Losses)
	}
	s.RiskReward = model.RatioOf(s.AvgWin, s.AvgLoss, s.Wins, s.Losses)
	return s
}

// FilterTrades keeps rows entered at or after cutoff that pass every filter.
func FilterTrades(rows []model.ModeTrade, cutoff int64, f Filters) []model.ModeTrade {
	out := make([]model.ModeTrade, 0, len(rows))
	for _, r := range rows {
		if r.EntryDate >= cutoff && f.Pass(r) {
			out = append(out, r)
		}
	}
	return out
}

// Aggregate computes Stats per mode over the filtered rows. Every mode
// present in rows gets an entry, with zero stats when nothing passes.
func Aggregate(rows []model.ModeTrade, cutoff int64, f Filters) map[model.Mode]Stats {
	byMode := make(map[model.Mode][]model.Trade)
	for _, r := range rows {
		if _, ok := byMode[r.Mode]; !ok {
			byMode[r.Mode] = nil
		}
	}
	for _, r := range FilterTrades(rows, cutoff, f) {
		byMode[r.Mode] = append(byMode[r.Mode], r.Trade)
	}

	out := make(map[model.Mode]Stats, len(byMode))
	for mode, trades := range byMode {
		s := StatsOf(trades)
		s.Mode = mode
		out[mode] = s
	}
	return out
}

// Sorted returns the per-mode stats in display order: known modes first,
// then any others alphabetically.
func Sorted(stats map[model.Mode]Stats) []Stats {
	rank := make(map[model.Mode]int, len(model.AllModes))
	for i, m := range model.AllModes {
		rank[m] = i
	}
	out := make([]Stats, 0, len(stats))
	for _, s := range stats {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, iok := rank[out[i].Mode]
		rj, jok := rank[out[j].Mode]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return out[i].Mode < out[j].Mode
	})
	return out
}
