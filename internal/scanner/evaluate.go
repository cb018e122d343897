package scanner

import (
	"signal-engine/internal/model"
	"signal-engine/internal/portfolio"
	"signal-engine/internal/signal"
	"signal-engine/internal/strategy"
)

// Evaluation is everything derived from one (mode, symbol) stream.
type Evaluation struct {
	Strategy    strategy.Result    `json:"strategy"`
	Signal      signal.Result      `json:"signal"`
	Stats       portfolio.Stats    `json:"stats"`
	Rows        []model.ModeTrade  `json:"-"`
	Update      model.SignalUpdate `json:"update"`
	Performance model.Performance  `json:"-"`
}

// Evaluate runs mode over the symbol's bars, classifies the stream as of
// its last bar and tags every trade row with the stream's quality scores
// and the symbol's market cap. An empty history yields NO_DATA.
func Evaluate(mode model.Mode, sym model.Symbol, bars []model.Bar, now int64) (*Evaluation, error) {
	clean := model.CleanBars(bars)
	ev := &Evaluation{
		Update: model.SignalUpdate{Mode: mode, Symbol: sym.Symbol},
	}

	if len(clean) == 0 {
		if _, err := strategy.New(mode); err != nil {
			return nil, err
		}
		ev.Strategy = strategy.Result{Mode: mode}
		ev.Signal = signal.NoData()
	} else {
		res, err := strategy.Compute(mode, clean)
		if err != nil {
			return nil, err
		}
		last := clean[len(clean)-1]
		ev.Strategy = res
		ev.Signal = signal.Classify(mode, res.Oscillators, res.Trades, last.Time)
		ev.Update.Price = last.Close
		ev.Update.AsOf = last.Time
	}

	ev.Stats = portfolio.StatsOf(ev.Strategy.Trades)
	ev.Stats.Mode = mode
	ev.Update.Signal = ev.Signal.Signal
	ev.Update.Bars = ev.Signal.Bars
	ev.Update.TradeCount = len(ev.Strategy.Trades)

	ev.Rows = model.Rows(mode, sym.Symbol, ev.Strategy.Trades)
	for i := range ev.Rows {
		ev.Rows[i].Name = sym.Name
		ev.Rows[i].WinRate = ev.Stats.WinRate
		ev.Rows[i].RiskReward = ev.Stats.RiskReward
		ev.Rows[i].AvgReturn = ev.Stats.AvgReturn
		ev.Rows[i].MarketCap = sym.MarketCap
	}

	ev.Performance = model.Performance{
		Mode:        mode,
		Symbol:      sym.Symbol,
		Signal:      ev.Signal.Signal,
		Bars:        ev.Signal.Bars,
		Trades:      ev.Stats.Trades,
		WinRate:     ev.Stats.WinRate,
		RiskReward:  ev.Stats.RiskReward,
		AvgReturn:   ev.Stats.AvgReturn,
		TotalReturn: ev.Stats.TotalReturn,
		Price:       ev.Update.Price,
		UpdatedAt:   now,
	}
	return ev, nil
}
