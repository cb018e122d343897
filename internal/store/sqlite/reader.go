package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"signal-engine/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to SQLite for the scanner and gateway.
type Reader struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	slog.Info("sqlite reader opened", "path", dbPath)
	return &Reader{db: db}, nil
}

// ReadBars returns bars of symbol and interval with ts >= fromTS, ordered
// by timestamp ascending.
func (r *Reader) ReadBars(ctx context.Context, symbol, interval string, fromTS int64) ([]model.Bar, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, COALESCE(volume, 0)
		FROM bars
		WHERE symbol = ? AND interval = ? AND ts >= ?
		ORDER BY ts ASC
	`, symbol, interval, fromTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ListSymbols returns the instrument universe ordered by symbol.
func (r *Reader) ListSymbols(ctx context.Context) ([]model.Symbol, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT symbol, name, market_cap FROM symbols ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var out []model.Symbol
	for rows.Next() {
		var s model.Symbol
		if err := rows.Scan(&s.Symbol, &s.Name, &s.MarketCap); err != nil {
			return nil, fmt.Errorf("sqlite scan symbols: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReadModeTrades returns trade rows of the given modes (every mode when
// modes is empty) entered at or after sinceTS, ordered by entry date.
func (r *Reader) ReadModeTrades(ctx context.Context, modes []model.Mode, sinceTS int64) ([]model.ModeTrade, error) {
	query := `
		SELECT mode, symbol, name, entry_date, entry_price, exit_date, exit_price,
			current_price, return_pct, is_open, win_rate, risk_reward, avg_return, market_cap
		FROM mode_trades
		WHERE entry_date >= ?`
	args := []any{sinceTS}
	if len(modes) > 0 {
		query += ` AND mode IN (?` + strings.Repeat(", ?", len(modes)-1) + `)`
		for _, m := range modes {
			args = append(args, string(m))
		}
	}
	query += ` ORDER BY entry_date ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query mode_trades: %w", err)
	}
	defer rows.Close()

	var out []model.ModeTrade
	for rows.Next() {
		var (
			t        model.ModeTrade
			mode     string
			exitDate sql.NullInt64
			exitPx   sql.NullFloat64
			current  sql.NullFloat64
			rr       float64
		)
		if err := rows.Scan(&mode, &t.Symbol, &t.Name, &t.EntryDate, &t.EntryPrice, &exitDate, &exitPx,
			&current, &t.ReturnPct, &t.IsOpen, &t.WinRate, &rr, &t.AvgReturn, &t.MarketCap); err != nil {
			return nil, fmt.Errorf("sqlite scan mode_trades: %w", err)
		}
		t.Mode = model.Mode(mode)
		t.RiskReward = decodeRatio(rr)
		if exitDate.Valid {
			t.ExitDate = model.Int64Ptr(exitDate.Int64)
		}
		if exitPx.Valid {
			t.ExitPrice = model.Float64Ptr(exitPx.Float64)
		}
		if current.Valid {
			t.CurrentPrice = model.Float64Ptr(current.Float64)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ReadPerformance returns the stored stream summaries of mode (every mode
// when mode is empty), ordered by mode then symbol.
func (r *Reader) ReadPerformance(ctx context.Context, mode model.Mode) ([]model.Performance, error) {
	query := `
		SELECT mode, symbol, signal, bars, trades, win_rate, risk_reward,
			avg_return, total_return, price, updated_at
		FROM performance`
	var args []any
	if mode != "" {
		query += ` WHERE mode = ?`
		args = append(args, string(mode))
	}
	query += ` ORDER BY mode, symbol`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query performance: %w", err)
	}
	defer rows.Close()

	var out []model.Performance
	for rows.Next() {
		var (
			p         model.Performance
			m, signal string
			rr        float64
		)
		if err := rows.Scan(&m, &p.Symbol, &signal, &p.Bars, &p.Trades, &p.WinRate, &rr,
			&p.AvgReturn, &p.TotalReturn, &p.Price, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite scan performance: %w", err)
		}
		p.Mode = model.Mode(m)
		p.Signal = model.Label(signal)
		p.RiskReward = decodeRatio(rr)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
