// cmd/importbars loads a CSV of OHLCV rows for one symbol into the SQLite
// bar store and registers the symbol in the scan universe.
//
// Usage:
//
//	go run ./cmd/importbars -symbol=AAPL -name="Apple Inc." -market-cap=3e12 -file=aapl.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"signal-engine/internal/logger"
	"signal-engine/internal/marketdata"
	"signal-engine/internal/model"
	sqlitestore "signal-engine/internal/store/sqlite"
)

func main() {
	dbPath := flag.String("db", "data/signals.db", "Path to SQLite database")
	file := flag.String("file", "", "CSV file to import (- for stdin)")
	symbol := flag.String("symbol", "", "Symbol the rows belong to (required)")
	name := flag.String("name", "", "Display name of the symbol")
	marketCap := flag.Float64("market-cap", 0, "Market capitalisation in dollars")
	interval := flag.String("interval", "1d", "Bar interval key")
	flag.Parse()

	log := logger.Init("importbars", logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	if *symbol == "" || *file == "" {
		fmt.Fprintln(os.Stderr, "importbars: -symbol and -file are required")
		flag.Usage()
		os.Exit(2)
	}
	sym := model.Symbol{Symbol: strings.ToUpper(*symbol), Name: *name, MarketCap: *marketCap}

	in := os.Stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			log.Error("open failed", "file", *file, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	bars, err := marketdata.ReadBarsCSV(in)
	if err != nil {
		log.Error("parse failed", "file", *file, "error", err)
		os.Exit(1)
	}
	clean := model.CleanBars(bars)
	if dropped := len(bars) - len(clean); dropped > 0 {
		log.Warn("dropped malformed or duplicate rows", "count", dropped)
	}

	if dir := filepath.Dir(*dbPath); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: *dbPath})
	if err != nil {
		log.Error("sqlite init failed", "error", err)
		os.Exit(1)
	}
	defer w.Close()

	ctx := context.Background()
	if err := w.UpsertSymbol(ctx, sym); err != nil {
		log.Error("symbol upsert failed", "symbol", sym.Symbol, "error", err)
		os.Exit(1)
	}
	if err := w.SaveBars(ctx, sym.Symbol, *interval, clean); err != nil {
		log.Error("bar save failed", "symbol", sym.Symbol, "error", err)
		os.Exit(1)
	}
	log.Info("imported", "symbol", sym.Symbol, "interval", *interval, "bars", len(clean))
}
