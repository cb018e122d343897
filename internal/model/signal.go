package model

import "encoding/json"

// Oscillator is one sample of a strategy's oscillator series.
type Oscillator struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
	Class string  `json:"class,omitempty"`
	Color string  `json:"color,omitempty"`
}

// Marker annotates an entry or exit on a chart.
type Marker struct {
	Time     int64  `json:"time"`
	Position string `json:"position"` // belowBar | aboveBar
	Shape    string `json:"shape"`    // arrowUp | arrowDown
	Text     string `json:"text"`
	Color    string `json:"color"`
}

// EquityPoint is one sample of a simulated equity curve.
type EquityPoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// Label is the discrete signal emitted per strategy stream.
type Label string

const (
	LabelBuy    Label = "BUY"
	LabelHold   Label = "HOLD"
	LabelSell   Label = "SELL"
	LabelWait   Label = "WAIT"
	LabelNoData Label = "NO_DATA"
)

// SignalUpdate is the latest classification of one (mode, symbol) stream.
// It is cached and published by the scanner and relayed by the gateway.
type SignalUpdate struct {
	Mode       Mode    `json:"mode"`
	Symbol     string  `json:"symbol"`
	Signal     Label   `json:"signal"`
	Bars       int     `json:"bars"`
	Price      float64 `json:"price"`
	AsOf       int64   `json:"asOf"`
	RunID      string  `json:"runId,omitempty"`
	TradeCount int     `json:"tradeCount"`
}

// Key returns "mode:symbol".
func (s *SignalUpdate) Key() string {
	return string(s.Mode) + ":" + s.Symbol
}

// CacheKey returns the Redis key holding the latest update: "sig:{mode}:{symbol}".
func (s *SignalUpdate) CacheKey() string {
	return "sig:" + s.Key()
}

// PubSubChannel returns the channel updates are published on: "pub:sig:{mode}:{symbol}".
func (s *SignalUpdate) PubSubChannel() string {
	return "pub:sig:" + s.Key()
}

// JSON returns the JSON-encoded update (ignoring errors for hot-path usage).
func (s *SignalUpdate) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// LinePoint is one sample of a price overlay (moving average, basis line).
type LinePoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// Performance is the per-stream summary saved after each scan.
type Performance struct {
	Mode        Mode    `json:"mode"`
	Symbol      string  `json:"symbol"`
	Signal      Label   `json:"signal"`
	Bars        int     `json:"bars"`
	Trades      int     `json:"tradeCount"`
	WinRate     float64 `json:"winRate"`
	RiskReward  Ratio   `json:"riskReward"`
	AvgReturn   float64 `json:"avgReturn"`
	TotalReturn float64 `json:"totalReturn"`
	Price       float64 `json:"price"`
	UpdatedAt   int64   `json:"updatedAt"`
}
