package model

// Trade is one round trip of a long-only strategy stream.
// IsOpen is true exactly when ExitDate is nil.
type Trade struct {
	EntryDate    int64    `json:"entryDate"`
	EntryPrice   float64  `json:"entryPrice"`
	ExitDate     *int64   `json:"exitDate,omitempty"`
	ExitPrice    *float64 `json:"exitPrice,omitempty"`
	CurrentPrice *float64 `json:"currentPrice,omitempty"`
	ReturnPct    float64  `json:"return"`
	IsOpen       bool     `json:"isOpen"`
}

// Exit returns the exit date, or fallback for an open trade.
func (t *Trade) Exit(fallback int64) int64 {
	if t.ExitDate == nil {
		return fallback
	}
	return *t.ExitDate
}

// LastPrice is the exit price of a closed trade, the current price of an
// open one, or the entry price when neither is known.
func (t *Trade) LastPrice() float64 {
	switch {
	case t.ExitPrice != nil:
		return *t.ExitPrice
	case t.CurrentPrice != nil:
		return *t.CurrentPrice
	default:
		return t.EntryPrice
	}
}

// ModeTrade is a persisted trade row with the quality scores of the stream
// it belongs to, attached at write time.
type ModeTrade struct {
	Trade
	Mode       Mode    `json:"mode"`
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name,omitempty"`
	WinRate    float64 `json:"winRate"`
	RiskReward Ratio   `json:"riskReward"`
	AvgReturn  float64 `json:"avgReturn"`
	MarketCap  float64 `json:"marketCap"`
}

// Int64Ptr and Float64Ptr build the optional trade fields.
func Int64Ptr(v int64) *int64 { return &v }

func Float64Ptr(v float64) *float64 { return &v }

// Rows tags a stream's trades with its mode and symbol.
func Rows(mode Mode, symbol string, trades []Trade) []ModeTrade {
	out := make([]ModeTrade, len(trades))
	for i, t := range trades {
		out[i] = ModeTrade{Trade: t, Mode: mode, Symbol: symbol}
	}
	return out
}
