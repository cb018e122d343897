package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"time"

	"signal-engine/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/signals.db"

	// OnCommit, if set, receives the duration of every trade replace commit.
	OnCommit func(time.Duration)
}

// Writer is a single-connection SQLite writer with transaction batching.
type Writer struct {
	db       *sql.DB
	onCommit func(time.Duration)
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", dsn(cfg.DBPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("sqlite opened", "path", cfg.DBPath)
	return &Writer{db: db, onCommit: cfg.OnCommit}, nil
}

func dsn(path string) string {
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol   TEXT    NOT NULL,
			interval TEXT    NOT NULL,
			ts       INTEGER NOT NULL,
			open     REAL    NOT NULL,
			high     REAL    NOT NULL,
			low      REAL    NOT NULL,
			close    REAL    NOT NULL,
			volume   REAL,
			PRIMARY KEY (symbol, interval, ts)
		);

		CREATE TABLE IF NOT EXISTS symbols (
			symbol     TEXT PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			market_cap REAL NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS mode_trades (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			mode          TEXT    NOT NULL,
			symbol        TEXT    NOT NULL,
			name          TEXT    NOT NULL DEFAULT '',
			entry_date    INTEGER NOT NULL,
			entry_price   REAL    NOT NULL,
			exit_date     INTEGER,
			exit_price    REAL,
			current_price REAL,
			return_pct    REAL    NOT NULL,
			is_open       INTEGER NOT NULL,
			win_rate      REAL    NOT NULL DEFAULT 0,
			risk_reward   REAL    NOT NULL DEFAULT 0,
			avg_return    REAL    NOT NULL DEFAULT 0,
			market_cap    REAL    NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_mode_trades_stream ON mode_trades (mode, symbol);
		CREATE INDEX IF NOT EXISTS idx_mode_trades_entry ON mode_trades (entry_date);

		CREATE TABLE IF NOT EXISTS performance (
			mode         TEXT    NOT NULL,
			symbol       TEXT    NOT NULL,
			signal       TEXT    NOT NULL,
			bars         INTEGER NOT NULL,
			trades       INTEGER NOT NULL,
			win_rate     REAL    NOT NULL,
			risk_reward  REAL    NOT NULL,
			avg_return   REAL    NOT NULL,
			total_return REAL    NOT NULL,
			price        REAL    NOT NULL,
			updated_at   INTEGER NOT NULL,
			PRIMARY KEY (mode, symbol)
		);
	`)
	return err
}

// encodeRatio maps +Inf to the largest float so it survives a REAL column.
func encodeRatio(r model.Ratio) float64 {
	if r.IsInf() {
		return math.MaxFloat64
	}
	return float64(r)
}

func decodeRatio(v float64) model.Ratio {
	if v >= math.MaxFloat64 {
		return model.Inf
	}
	return model.Ratio(v)
}

// SaveBars upserts bars of one symbol and interval in a single transaction.
func (w *Writer) SaveBars(ctx context.Context, symbol, interval string, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin bars: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (symbol, interval, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare bars: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, interval, b.Time, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert bar %s@%d: %w", symbol, b.Time, err)
		}
	}

	return tx.Commit()
}

// UpsertSymbol inserts or updates one instrument.
func (w *Writer) UpsertSymbol(ctx context.Context, s model.Symbol) error {
	_, err := w.db.ExecContext(ctx, `
		INSERT INTO symbols (symbol, name, market_cap) VALUES (?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET name = excluded.name, market_cap = excluded.market_cap
	`, s.Symbol, s.Name, s.MarketCap)
	if err != nil {
		return fmt.Errorf("sqlite upsert symbol %s: %w", s.Symbol, err)
	}
	return nil
}

// ReplaceModeTrades deletes every row of the (mode, symbol) stream and
// inserts rows in their place, in one transaction.
func (w *Writer) ReplaceModeTrades(ctx context.Context, mode model.Mode, symbol string, rows []model.ModeTrade) error {
	start := time.Now()
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin trades: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM mode_trades WHERE mode = ? AND symbol = ?`, string(mode), symbol); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite delete trades %s:%s: %w", mode, symbol, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mode_trades (mode, symbol, name, entry_date, entry_price, exit_date, exit_price,
			current_price, return_pct, is_open, win_rate, risk_reward, avg_return, market_cap)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare trades: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx, string(mode), symbol, r.Name, r.EntryDate, r.EntryPrice,
			r.ExitDate, r.ExitPrice, r.CurrentPrice, r.ReturnPct, r.IsOpen,
			r.WinRate, encodeRatio(r.RiskReward), r.AvgReturn, r.MarketCap)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert trade %s:%s@%d: %w", mode, symbol, r.EntryDate, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit trades %s:%s: %w", mode, symbol, err)
	}
	if w.onCommit != nil {
		w.onCommit(time.Since(start))
	}
	return nil
}

// SavePerformance stores the latest summary of one stream.
func (w *Writer) SavePerformance(ctx context.Context, p model.Performance) error {
	_, err := w.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO performance (mode, symbol, signal, bars, trades, win_rate,
			risk_reward, avg_return, total_return, price, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(p.Mode), p.Symbol, string(p.Signal), p.Bars, p.Trades, p.WinRate,
		encodeRatio(p.RiskReward), p.AvgReturn, p.TotalReturn, p.Price, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite save performance %s:%s: %w", p.Mode, p.Symbol, err)
	}
	return nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
