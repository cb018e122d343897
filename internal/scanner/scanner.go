// Package scanner evaluates every configured strategy mode over every
// symbol in the universe, persists the resulting trade streams and
// publishes the latest signal of each stream.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"signal-engine/internal/logger"
	"signal-engine/internal/metrics"
	"signal-engine/internal/model"
)

// Config controls one scanner instance.
type Config struct {
	Modes       []model.Mode
	Interval    string // bar interval key, e.g. "1d"
	HistoryDays int    // 0 loads the full history
	Workers     int    // symbols evaluated concurrently
}

// Observer is told about every evaluated stream, e.g. to raise alerts.
type Observer interface {
	Observe(ctx context.Context, u model.SignalUpdate)
}

// Deps are the stores the scanner reads from and writes to.
// Cache, Alerts, Metrics and Health are optional.
type Deps struct {
	Bars    model.BarSource
	Symbols model.SymbolSource
	Trades  model.TradeWriter
	Cache   model.SignalCache
	Alerts  Observer
	Metrics *metrics.Metrics
	Health  *metrics.HealthStatus
}

// Summary reports the outcome of one scan pass.
type Summary struct {
	RunID    string
	Symbols  int
	Streams  int
	Errors   int
	Signals  map[model.Label]int
	Duration time.Duration
}

// Scanner runs scan passes.
type Scanner struct {
	cfg  Config
	deps Deps
	now  func() time.Time
}

// New creates a Scanner. Modes default to every known mode and Workers
// is floored at 1.
func New(cfg Config, deps Deps) *Scanner {
	if len(cfg.Modes) == 0 {
		cfg.Modes = model.AllModes
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Scanner{cfg: cfg, deps: deps, now: time.Now}
}

// Run scans once, then again every interval until ctx is cancelled.
// An interval <= 0 scans once and returns.
func (s *Scanner) Run(ctx context.Context, every time.Duration) error {
	if _, err := s.ScanOnce(ctx); err != nil {
		return err
	}
	if every <= 0 {
		return nil
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.ScanOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Error("scan failed", "error", err)
			}
		}
	}
}

// ScanOnce evaluates every (symbol, mode) stream. A failing stream is
// logged and counted; only a failure to list symbols or a cancelled
// context aborts the pass.
func (s *Scanner) ScanOnce(ctx context.Context) (*Summary, error) {
	runID := logger.NewRunID()
	ctx = logger.WithRunID(ctx, runID)
	start := s.now()

	symbols, err := s.deps.Symbols.ListSymbols(ctx)
	if err != nil {
		s.countError("symbols")
		s.recordScan(false)
		return nil, fmt.Errorf("scanner list symbols: %w", err)
	}

	slog.Info("scan started", append(logger.LogWithRun(ctx),
		"symbols", len(symbols), "modes", len(s.cfg.Modes), "workers", s.cfg.Workers)...)

	sum := &Summary{RunID: runID, Symbols: len(symbols), Signals: make(map[model.Label]int)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, sym := range symbols {
		sym := sym
		g.Go(func() error {
			updates, errs := s.scanSymbol(gctx, sym, start.Unix())
			mu.Lock()
			defer mu.Unlock()
			sum.Streams += len(updates)
			sum.Errors += errs
			for _, u := range updates {
				sum.Signals[u.Signal]++
			}
			return gctx.Err()
		})
	}
	waitErr := g.Wait()

	sum.Duration = s.now().Sub(start)
	if s.deps.Metrics != nil {
		s.deps.Metrics.ScanDur.Observe(sum.Duration.Seconds())
	}
	if waitErr != nil {
		s.recordScan(false)
		return sum, fmt.Errorf("scanner run %s: %w", runID, waitErr)
	}
	s.recordScan(sum.Errors == 0)

	slog.Info("scan complete", append(logger.LogWithRun(ctx),
		"streams", sum.Streams, "errors", sum.Errors, "duration", sum.Duration.String())...)
	return sum, nil
}

// scanSymbol loads the symbol's history once and evaluates every mode on
// it. It returns the published updates and the number of failed stages.
func (s *Scanner) scanSymbol(ctx context.Context, sym model.Symbol, now int64) ([]model.SignalUpdate, int) {
	var from int64
	if s.cfg.HistoryDays > 0 {
		from = now - int64(s.cfg.HistoryDays)*86400
	}

	bars, err := s.deps.Bars.ReadBars(ctx, sym.Symbol, s.cfg.Interval, from)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, 0
		}
		s.countError("read")
		slog.Error("read bars failed", append(logger.LogWithRun(ctx), "symbol", sym.Symbol, "error", err)...)
		return nil, 1
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.SymbolsScanned.Inc()
	}

	var (
		updates []model.SignalUpdate
		errs    int
	)
	for _, mode := range s.cfg.Modes {
		if ctx.Err() != nil {
			break
		}
		u, err := s.scanStream(ctx, mode, sym, bars, now)
		if err != nil {
			errs++
			slog.Error("stream failed", append(logger.LogWithRun(ctx),
				"mode", string(mode), "symbol", sym.Symbol, "error", err)...)
			continue
		}
		updates = append(updates, u)
	}
	return updates, errs
}

func (s *Scanner) scanStream(ctx context.Context, mode model.Mode, sym model.Symbol, bars []model.Bar, now int64) (model.SignalUpdate, error) {
	start := time.Now()
	ev, err := Evaluate(mode, sym, bars, now)
	if err != nil {
		s.countError("compute")
		return model.SignalUpdate{}, err
	}
	ev.Update.RunID = logger.RunID(ctx)
	if m := s.deps.Metrics; m != nil {
		m.ComputeDur.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
		m.SignalsTotal.WithLabelValues(string(mode), string(ev.Update.Signal)).Inc()
		m.TradesTotal.WithLabelValues(string(mode)).Add(float64(len(ev.Rows)))
	}

	if ev.Signal.Signal != model.LabelNoData {
		if err := s.deps.Trades.ReplaceModeTrades(ctx, mode, sym.Symbol, ev.Rows); err != nil {
			s.countError("store")
			return model.SignalUpdate{}, err
		}
	}
	if err := s.deps.Trades.SavePerformance(ctx, ev.Performance); err != nil {
		s.countError("store")
		return model.SignalUpdate{}, err
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.PublishSignal(ctx, ev.Update); err != nil {
			// the stream is persisted; a lost publish is retried by the next scan
			s.countError("publish")
			slog.Warn("publish failed", append(logger.LogWithRun(ctx),
				"key", ev.Update.Key(), "error", err)...)
		}
	}
	if s.deps.Alerts != nil {
		s.deps.Alerts.Observe(ctx, ev.Update)
	}

	slog.Debug("stream evaluated", append(logger.LogWithRun(ctx),
		"mode", string(mode), "symbol", sym.Symbol,
		"signal", string(ev.Update.Signal), "bars", ev.Update.Bars, "trades", len(ev.Rows))...)
	return ev.Update, nil
}

func (s *Scanner) countError(stage string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.ScanErrors.WithLabelValues(stage).Inc()
	}
}

func (s *Scanner) recordScan(ok bool) {
	if s.deps.Health != nil {
		s.deps.Health.RecordScan(s.now(), ok)
	}
}
