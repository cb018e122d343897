package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the scanner and gateway from the concrete
// stores (SQLite, Redis). Each implementation satisfies one or more of them.

// Symbol is a tradable instrument with its market capitalisation in dollars.
type Symbol struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	MarketCap float64 `json:"marketCap"`
}

// BarSource provides bar history for a symbol.
type BarSource interface {
	// ReadBars returns bars with Time >= fromTS ordered by time ascending.
	ReadBars(ctx context.Context, symbol, interval string, fromTS int64) ([]Bar, error)
}

// SymbolSource lists the instrument universe.
type SymbolSource interface {
	ListSymbols(ctx context.Context) ([]Symbol, error)
}

// TradeWriter persists per-stream trade rows and summaries.
type TradeWriter interface {
	// ReplaceModeTrades atomically replaces all rows of one (mode, symbol) stream.
	ReplaceModeTrades(ctx context.Context, mode Mode, symbol string, rows []ModeTrade) error
	SavePerformance(ctx context.Context, p Performance) error
}

// TradeReader reads persisted trade rows.
type TradeReader interface {
	// ReadModeTrades returns rows of the given modes (all when empty)
	// with EntryDate >= sinceTS.
	ReadModeTrades(ctx context.Context, modes []Mode, sinceTS int64) ([]ModeTrade, error)
}

// PerformanceReader reads the per-stream summaries of the last scan.
type PerformanceReader interface {
	ReadPerformance(ctx context.Context, mode Mode) ([]Performance, error)
}

// SignalCache stores and publishes the latest signal of each stream.
type SignalCache interface {
	PublishSignal(ctx context.Context, update SignalUpdate) error
}

// SignalReader reads cached signals.
type SignalReader interface {
	LatestForMode(ctx context.Context, mode Mode) ([]SignalUpdate, error)
}
