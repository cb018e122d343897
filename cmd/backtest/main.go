// cmd/backtest runs one strategy stream over the bar history stored in
// SQLite and simulates investing a fixed amount in every trade.
//
// Usage:
//
//	go run ./cmd/backtest -symbol=AAPL -mode=quant -amount=1000 -since=2020-01-01
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"signal-engine/internal/backtest"
	"signal-engine/internal/logger"
	"signal-engine/internal/model"
	"signal-engine/internal/portfolio"
	"signal-engine/internal/scanner"
	sqlitestore "signal-engine/internal/store/sqlite"
)

func main() {
	dbPath := flag.String("db", "data/signals.db", "Path to SQLite database")
	symbol := flag.String("symbol", "", "Symbol to backtest (required)")
	interval := flag.String("interval", "1d", "Bar interval key")
	modeStr := flag.String("mode", "quant", "Strategy mode")
	amount := flag.Float64("amount", 1000, "Amount invested per trade")
	sinceStr := flag.String("since", "", "Only simulate trades entered on or after this date (YYYY-MM-DD or epoch seconds)")
	asJSON := flag.Bool("json", false, "Print the full result as JSON")
	flag.Parse()

	log := logger.Init("backtest", logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	if *symbol == "" {
		fmt.Fprintln(os.Stderr, "backtest: -symbol is required")
		flag.Usage()
		os.Exit(2)
	}
	mode, ok := model.ParseMode(*modeStr)
	if !ok {
		fmt.Fprintf(os.Stderr, "backtest: unknown mode %q\n", *modeStr)
		os.Exit(2)
	}
	since, err := parseSince(*sinceStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backtest: %v\n", err)
		os.Exit(2)
	}

	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Error("sqlite open failed", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer reader.Close()

	ctx := logger.WithRunID(context.Background(), logger.NewRunID())
	sym := model.Symbol{Symbol: strings.ToUpper(*symbol)}
	if all, err := reader.ListSymbols(ctx); err == nil {
		for _, s := range all {
			if s.Symbol == sym.Symbol {
				sym = s
				break
			}
		}
	}

	bars, err := reader.ReadBars(ctx, sym.Symbol, *interval, 0)
	if err != nil {
		log.Error("bar read failed", append(logger.LogWithRun(ctx), "symbol", sym.Symbol, "error", err)...)
		os.Exit(1)
	}
	log.Info("bars loaded", append(logger.LogWithRun(ctx), "symbol", sym.Symbol, "bars", len(bars))...)

	now := time.Now().Unix()
	ev, err := scanner.Evaluate(mode, sym, bars, now)
	if err != nil {
		log.Error("evaluate failed", append(logger.LogWithRun(ctx), "error", err)...)
		os.Exit(1)
	}
	res := backtest.Simulate(portfolio.FilterTrades(ev.Rows, since, portfolio.Filters{}), *amount, now)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(map[string]interface{}{
			"evaluation": ev,
			"simulation": res,
		})
		return
	}

	fmt.Printf("%-12s %-12s %10s %10s %8s\n", "ENTRY", "EXIT", "IN", "OUT", "RET%")
	for _, t := range ev.Strategy.Trades {
		if t.EntryDate < since {
			continue
		}
		exit := "open"
		if t.ExitDate != nil {
			exit = day(*t.ExitDate)
		}
		fmt.Printf("%-12s %-12s %10.2f %10.2f %8.2f\n", day(t.EntryDate), exit, t.EntryPrice, t.LastPrice(), t.ReturnPct)
	}

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Symbol:            %-16s ║\n", sym.Symbol)
	fmt.Printf("║  Mode:              %-16s ║\n", mode)
	fmt.Printf("║  Bars:              %-16d ║\n", len(bars))
	fmt.Printf("║  Signal:            %-16s ║\n", fmt.Sprintf("%s (%d)", ev.Signal.Signal, ev.Signal.Bars))
	fmt.Printf("║  Trades:            %-16d ║\n", ev.Stats.Trades)
	fmt.Printf("║  Win rate:          %-16s ║\n", fmt.Sprintf("%.1f%%", ev.Stats.WinRate))
	fmt.Printf("║  Risk/reward:       %-16s ║\n", ratio(ev.Stats.RiskReward))
	if res != nil {
		fmt.Println("╠══════════════════════════════════════╣")
		fmt.Printf("║  Max concurrent:    %-16d ║\n", res.MaxConcurrent)
		fmt.Printf("║  Eigenkapital:      %-16.2f ║\n", res.Eigenkapital)
		fmt.Printf("║  Endkapital:        %-16.2f ║\n", res.Endkapital)
		fmt.Printf("║  Gewinn:            %-16.2f ║\n", res.Gewinn)
		fmt.Printf("║  Rendite:           %-16s ║\n", fmt.Sprintf("%.2f%%", res.Rendite))
		fmt.Printf("║  CAGR:              %-16s ║\n", fmt.Sprintf("%.2f%%", res.CAGR))
	}
	fmt.Println("╚══════════════════════════════════════╝")
}

func day(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

func ratio(r model.Ratio) string {
	if r.IsInf() {
		return "∞"
	}
	return strconv.FormatFloat(float64(r), 'f', 2, 64)
}

func parseSince(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return 0, fmt.Errorf("invalid -since %q", s)
	}
	return t.Unix(), nil
}
