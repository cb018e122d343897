// Package backtest replays a set of trades against a fixed position size
// and reports the capital it would have required and returned.
package backtest

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"signal-engine/internal/model"
	"signal-engine/internal/portfolio"
)

const (
	secondsPerDay  = 86400
	secondsPerYear = 365 * secondsPerDay

	// minCAGRYears is the shortest span that is annualised.
	minCAGRYears = 0.1
	// maxEquityPoints bounds the stepped equity walk.
	maxEquityPoints = 1000
)

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.NewFromFloat(0.5)
)

// SimTrade is the per-run view of one trade.
type SimTrade struct {
	Symbol     string     `json:"symbol,omitempty"`
	Mode       model.Mode `json:"mode,omitempty"`
	EntryDate  int64      `json:"entryDate"`
	ExitDate   *int64     `json:"exitDate,omitempty"`
	EntryPrice float64    `json:"entryPrice"`
	ExitPrice  float64    `json:"exitPrice"`
	ReturnPct  float64    `json:"returnPct"`
	Invested   float64    `json:"invested"`
	Profit     float64    `json:"profit"`
	Received   float64    `json:"received"`
	Status     string     `json:"status"` // open | closed

	exit int64
}

// Result is the outcome of one simulation run.
type Result struct {
	Amount        float64 `json:"amount"`
	MaxConcurrent int     `json:"maxConcurrent"`
	Eigenkapital  float64 `json:"eigenkapital"`
	Endkapital    float64 `json:"endkapital"`
	Gewinn        float64 `json:"gewinn"`
	Rendite       float64 `json:"rendite"`
	CAGR          float64 `json:"cagr"`
	Years         float64 `json:"years"`
	Start         int64   `json:"start"`
	End           int64   `json:"end"`

	Trades      int         `json:"trades"`
	OpenTrades  int         `json:"openTrades"`
	Wins        int         `json:"wins"`
	Losses      int         `json:"losses"`
	WinRate     float64     `json:"winRate"`
	AvgWin      float64     `json:"avgWin"`
	AvgLoss     float64     `json:"avgLoss"`
	AvgWinPct   float64     `json:"avgWinPct"`
	AvgLossPct  float64     `json:"avgLossPct"`
	RiskReward  model.Ratio `json:"riskReward"`
	AvgReturn   float64     `json:"avgReturn"`
	TotalReturn float64     `json:"totalReturn"`

	Equity    []model.EquityPoint `json:"equity"`
	Positions []SimTrade          `json:"positions"`
}

// Simulate invests amount in every trade. Open trades are closed at now.
// It returns nil when amount is not a positive finite number or there are
// no trades. A non-finite trade return counts as 0.
func Simulate(trades []model.ModeTrade, amount float64, now int64) *Result {
	if !(amount > 0) || math.IsInf(amount, 0) || len(trades) == 0 {
		return nil
	}

	amt := decimal.NewFromFloat(amount)
	positions := make([]SimTrade, len(trades))
	total := decimal.Zero
	profits := make([]float64, len(trades))
	returns := make([]float64, len(trades))

	for i, t := range trades {
		ret := t.ReturnPct
		if math.IsNaN(ret) || math.IsInf(ret, 0) {
			ret = 0
		}
		profit := roundCents(amt.Mul(decimal.NewFromFloat(ret)).Div(hundred))
		total = total.Add(profit)

		p := SimTrade{
			Symbol:     t.Symbol,
			Mode:       t.Mode,
			EntryDate:  t.EntryDate,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.LastPrice(),
			ReturnPct:  ret,
			Invested:   amount,
			Profit:     profit.InexactFloat64(),
			Received:   amt.Add(profit).InexactFloat64(),
			Status:     "closed",
			exit:       t.Exit(now),
		}
		if t.IsOpen || t.ExitDate == nil {
			p.Status = "open"
			p.exit = now
		} else {
			p.ExitDate = model.Int64Ptr(*t.ExitDate)
		}
		if p.exit < p.EntryDate {
			p.exit = p.EntryDate
		}
		positions[i] = p
		profits[i] = p.Profit
		returns[i] = ret
	}
	sort.SliceStable(positions, func(i, j int) bool {
		return positions[i].EntryDate < positions[j].EntryDate
	})

	maxOpen := MaxConcurrent(positions)
	eigen := amt.Mul(decimal.NewFromInt(int64(maxOpen)))
	end := eigen.Add(total)

	res := &Result{
		Amount:        amount,
		MaxConcurrent: maxOpen,
		Eigenkapital:  eigen.InexactFloat64(),
		Endkapital:    end.InexactFloat64(),
		Gewinn:        total.InexactFloat64(),
		Positions:     positions,
	}
	if !eigen.IsZero() {
		res.Rendite = total.Div(eigen).Mul(hundred).InexactFloat64()
	}

	res.Start, res.End = span(positions)
	res.Years = float64(res.End-res.Start) / secondsPerYear
	res.CAGR = cagr(res.Eigenkapital, res.Endkapital, res.Years, res.Rendite)

	dollars := portfolio.Summarize(profits)
	pct := portfolio.Summarize(returns)
	res.Trades = len(positions)
	res.Wins = dollars.Wins
	res.Losses = dollars.Losses
	res.WinRate = dollars.WinRate
	res.AvgWin = dollars.AvgWin
	res.AvgLoss = dollars.AvgLoss
	res.RiskReward = dollars.RiskReward
	res.AvgWinPct = pct.AvgWin
	res.AvgLossPct = pct.AvgLoss
	res.AvgReturn = pct.AvgReturn
	res.TotalReturn = pct.TotalReturn
	for _, p := range positions {
		if p.Status == "open" {
			res.OpenTrades++
		}
	}

	res.Equity = EquityCurve(positions, res.Eigenkapital, res.Endkapital, res.Start, res.End)
	return res
}

// roundCents rounds to two places with half-cent ties going toward +Inf,
// so -0.005 becomes 0.00 and 0.005 becomes 0.01.
func roundCents(d decimal.Decimal) decimal.Decimal {
	return d.Shift(2).Add(half).Floor().Shift(-2)
}

// MaxConcurrent sweeps entry (+1) and exit (-1) events in time order.
// At equal timestamps exits are applied before entries, so a trade closing
// as another opens does not count twice. The result is at least 1.
func MaxConcurrent(positions []SimTrade) int {
	type event struct {
		ts    int64
		delta int
	}
	events := make([]event, 0, 2*len(positions))
	for _, p := range positions {
		events = append(events, event{p.EntryDate, 1}, event{p.exit, -1})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].ts != events[j].ts {
			return events[i].ts < events[j].ts
		}
		return events[i].delta < events[j].delta
	})

	open, peak := 0, 1
	for _, ev := range events {
		open += ev.delta
		if open > peak {
			peak = open
		}
	}
	return peak
}

// span returns the first entry and the last effective exit.
func span(positions []SimTrade) (int64, int64) {
	start, end := positions[0].EntryDate, positions[0].exit
	for _, p := range positions[1:] {
		if p.EntryDate < start {
			start = p.EntryDate
		}
		if p.exit > end {
			end = p.exit
		}
	}
	return start, end
}

// cagr annualises the return over years, falling back to rendite for spans
// shorter than minCAGRYears. A wiped-out portfolio reports -100.
func cagr(eigen, end, years, rendite float64) float64 {
	if years < minCAGRYears || eigen <= 0 {
		return rendite
	}
	ratio := end / eigen
	if ratio <= 0 {
		return -100
	}
	return (math.Pow(ratio, 1/years) - 1) * 100
}
