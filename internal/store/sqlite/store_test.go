package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"signal-engine/internal/model"
)

func openPair(t *testing.T) (*Writer, *Reader) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "signals.db")
	w, err := New(WriterConfig{DBPath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return w, r
}

func TestBarsRoundTrip(t *testing.T) {
	w, r := openPair(t)
	ctx := context.Background()

	bars := []model.Bar{
		{Time: 100, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 1000},
		{Time: 200, Open: 10.5, High: 12, Low: 10, Close: 11.5, Volume: 1200},
		{Time: 300, Open: 11.5, High: 12.5, Low: 11, Close: 12, Volume: 900},
	}
	if err := w.SaveBars(ctx, "AAPL", "1d", bars); err != nil {
		t.Fatalf("SaveBars: %v", err)
	}
	// same key replaces, other interval is separate
	if err := w.SaveBars(ctx, "AAPL", "1d", []model.Bar{{Time: 300, Open: 11.5, High: 13, Low: 11, Close: 12.8}}); err != nil {
		t.Fatalf("SaveBars replace: %v", err)
	}
	if err := w.SaveBars(ctx, "AAPL", "1h", bars[:1]); err != nil {
		t.Fatalf("SaveBars 1h: %v", err)
	}

	got, err := r.ReadBars(ctx, "AAPL", "1d", 200)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 bars from ts 200, got %d", len(got))
	}
	if got[0].Time != 200 || got[1].Time != 300 {
		t.Errorf("bars not ordered by time: %+v", got)
	}
	if got[1].Close != 12.8 {
		t.Errorf("replaced close = %v, want 12.8", got[1].Close)
	}

	none, err := r.ReadBars(ctx, "MSFT", "1d", 0)
	if err != nil {
		t.Fatalf("ReadBars unknown: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no bars for unknown symbol, got %d", len(none))
	}
}

func TestSymbolsUpsert(t *testing.T) {
	w, r := openPair(t)
	ctx := context.Background()

	for _, s := range []model.Symbol{
		{Symbol: "MSFT", Name: "Microsoft", MarketCap: 3e12},
		{Symbol: "AAPL", Name: "Apple", MarketCap: 2e12},
		{Symbol: "AAPL", Name: "Apple Inc.", MarketCap: 2.5e12},
	} {
		if err := w.UpsertSymbol(ctx, s); err != nil {
			t.Fatalf("UpsertSymbol: %v", err)
		}
	}

	got, err := r.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 symbols, got %d", len(got))
	}
	if got[0].Symbol != "AAPL" || got[0].Name != "Apple Inc." || got[0].MarketCap != 2.5e12 {
		t.Errorf("AAPL not updated: %+v", got[0])
	}
}

func TestReplaceModeTrades(t *testing.T) {
	w, r := openPair(t)
	ctx := context.Background()

	closed := model.ModeTrade{
		Trade: model.Trade{
			EntryDate: 1000, EntryPrice: 100,
			ExitDate: model.Int64Ptr(2000), ExitPrice: model.Float64Ptr(110),
			ReturnPct: 10,
		},
		WinRate: 100, RiskReward: model.Inf, AvgReturn: 10, MarketCap: 5e9,
	}
	open := model.ModeTrade{
		Trade: model.Trade{
			EntryDate: 3000, EntryPrice: 120,
			CurrentPrice: model.Float64Ptr(114), ReturnPct: -5, IsOpen: true,
		},
		WinRate: 50, RiskReward: 2, AvgReturn: 2.5,
	}

	if err := w.ReplaceModeTrades(ctx, model.ModeQuant, "AAPL", []model.ModeTrade{closed, open}); err != nil {
		t.Fatalf("ReplaceModeTrades: %v", err)
	}
	if err := w.ReplaceModeTrades(ctx, model.ModeDitz, "AAPL", []model.ModeTrade{closed}); err != nil {
		t.Fatalf("ReplaceModeTrades ditz: %v", err)
	}

	got, err := r.ReadModeTrades(ctx, []model.Mode{model.ModeQuant}, 0)
	if err != nil {
		t.Fatalf("ReadModeTrades: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 quant rows, got %d", len(got))
	}
	if got[0].Mode != model.ModeQuant || got[0].Symbol != "AAPL" {
		t.Errorf("row not tagged: %+v", got[0])
	}
	if got[0].ExitDate == nil || *got[0].ExitDate != 2000 || got[0].ExitPrice == nil || *got[0].ExitPrice != 110 {
		t.Errorf("closed trade exit lost: %+v", got[0].Trade)
	}
	if !got[0].RiskReward.IsInf() {
		t.Errorf("infinite RR not preserved, got %v", got[0].RiskReward)
	}
	if !got[1].IsOpen || got[1].ExitDate != nil || got[1].CurrentPrice == nil || *got[1].CurrentPrice != 114 {
		t.Errorf("open trade not preserved: %+v", got[1].Trade)
	}

	// replacing drops the old rows of that stream only
	if err := w.ReplaceModeTrades(ctx, model.ModeQuant, "AAPL", []model.ModeTrade{open}); err != nil {
		t.Fatalf("ReplaceModeTrades again: %v", err)
	}
	all, err := r.ReadModeTrades(ctx, nil, 0)
	if err != nil {
		t.Fatalf("ReadModeTrades all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 1 quant + 1 ditz row, got %d", len(all))
	}

	since, err := r.ReadModeTrades(ctx, nil, 2500)
	if err != nil {
		t.Fatalf("ReadModeTrades since: %v", err)
	}
	if len(since) != 1 || since[0].EntryDate != 3000 {
		t.Errorf("since filter: %+v", since)
	}
}

func TestPerformanceUpsert(t *testing.T) {
	w, r := openPair(t)
	ctx := context.Background()

	p := model.Performance{
		Mode: model.ModeTrader, Symbol: "AAPL", Signal: model.LabelBuy,
		Bars: 1, Trades: 4, WinRate: 75, RiskReward: 1.8, AvgReturn: 3.2,
		TotalReturn: 12.8, Price: 190.5, UpdatedAt: 1700000000,
	}
	if err := w.SavePerformance(ctx, p); err != nil {
		t.Fatalf("SavePerformance: %v", err)
	}
	p.Signal = model.LabelHold
	p.Bars = 2
	if err := w.SavePerformance(ctx, p); err != nil {
		t.Fatalf("SavePerformance again: %v", err)
	}

	got, err := r.ReadPerformance(ctx, model.ModeTrader)
	if err != nil {
		t.Fatalf("ReadPerformance: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got))
	}
	if got[0] != p {
		t.Errorf("got %+v, want %+v", got[0], p)
	}

	other, err := r.ReadPerformance(ctx, model.ModeQuant)
	if err != nil {
		t.Fatalf("ReadPerformance quant: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no quant rows, got %d", len(other))
	}
}
