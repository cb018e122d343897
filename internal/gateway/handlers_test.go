package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"signal-engine/internal/backtest"
	"signal-engine/internal/metrics"
	"signal-engine/internal/model"
)

const day = int64(86400)

type fakeTradeReader struct {
	rows []model.ModeTrade
	err  error
}

func (f *fakeTradeReader) ReadModeTrades(_ context.Context, modes []model.Mode, sinceTS int64) ([]model.ModeTrade, error) {
	if f.err != nil {
		return nil, f.err
	}
	want := make(map[model.Mode]bool, len(modes))
	for _, m := range modes {
		want[m] = true
	}
	var out []model.ModeTrade
	for _, r := range f.rows {
		if (len(want) == 0 || want[r.Mode]) && r.EntryDate >= sinceTS {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeBarSource struct {
	bars map[string][]model.Bar
}

func (f *fakeBarSource) ReadBars(_ context.Context, symbol, _ string, _ int64) ([]model.Bar, error) {
	return f.bars[symbol], nil
}

type fakeSymbolSource struct{ list []model.Symbol }

func (f *fakeSymbolSource) ListSymbols(context.Context) ([]model.Symbol, error) { return f.list, nil }

type fakeSignalReader struct {
	updates []model.SignalUpdate
	err     error
}

func (f *fakeSignalReader) LatestForMode(_ context.Context, mode model.Mode) ([]model.SignalUpdate, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.SignalUpdate
	for _, u := range f.updates {
		if u.Mode == mode {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakePerf struct{ perf []model.Performance }

func (f *fakePerf) ReadPerformance(_ context.Context, mode model.Mode) ([]model.Performance, error) {
	var out []model.Performance
	for _, p := range f.perf {
		if mode == "" || p.Mode == mode {
			out = append(out, p)
		}
	}
	return out, nil
}

func closedRow(mode model.Mode, symbol string, entry, exit int64, ret float64) model.ModeTrade {
	return model.ModeTrade{
		Trade: model.Trade{
			EntryDate:  entry,
			EntryPrice: 100,
			ExitDate:   model.Int64Ptr(exit),
			ExitPrice:  model.Float64Ptr(100 * (1 + ret/100)),
			ReturnPct:  ret,
		},
		Mode:      mode,
		Symbol:    symbol,
		WinRate:   50,
		MarketCap: 5e9,
	}
}

func wavyBars(n int) []model.Bar {
	bars := make([]model.Bar, n)
	prev := 100.0
	for i := range bars {
		c := 100 + 20*math.Sin(float64(i)/15) + float64(i)*0.1
		bars[i] = model.Bar{
			Time:   1_600_000_000 + int64(i)*day,
			Open:   prev,
			High:   math.Max(prev, c) + 0.5,
			Low:    math.Min(prev, c) - 0.5,
			Close:  c,
			Volume: 1000,
		}
		prev = c
	}
	return bars
}

func newTestServer(t *testing.T) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s := &Server{
		Trades: &fakeTradeReader{rows: []model.ModeTrade{
			closedRow(model.ModeQuant, "AAA", 10*day, 20*day, 10),
			closedRow(model.ModeQuant, "BBB", 15*day, 30*day, 5),
			closedRow(model.ModeDitz, "AAA", 12*day, 18*day, -4),
			closedRow(model.ModeDitz, "BBB", 40*day, 50*day, 8),
		}},
		Bars:     &fakeBarSource{bars: map[string][]model.Bar{"AAA": wavyBars(300)}},
		Symbols:  &fakeSymbolSource{list: []model.Symbol{{Symbol: "AAA", Name: "Alpha", MarketCap: 3e9}}},
		Perf:     &fakePerf{perf: []model.Performance{{Mode: model.ModeQuant, Symbol: "AAA", Signal: model.LabelHold}}},
		Hub:      NewHub(nil),
		Metrics:  metrics.NewMetrics(reg),
		Interval: "1d",
		Now:      func() time.Time { return time.Unix(100*day, 0) },
	}
	return s, reg
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestPerformance(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/api/performance")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}

	var resp struct {
		Modes []struct {
			Mode       model.Mode  `json:"mode"`
			Trades     int         `json:"tradeCount"`
			WinRate    float64     `json:"winRate"`
			RiskReward model.Ratio `json:"riskReward"`
		} `json:"modes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Modes) != 2 {
		t.Fatalf("modes=%d, want 2", len(resp.Modes))
	}
	// display order: quant before ditz
	quant, ditz := resp.Modes[0], resp.Modes[1]
	if quant.Mode != model.ModeQuant || ditz.Mode != model.ModeDitz {
		t.Fatalf("order = %s, %s", quant.Mode, ditz.Mode)
	}
	if quant.Trades != 2 || quant.WinRate != 100 || !quant.RiskReward.IsInf() {
		t.Errorf("quant = %+v", quant)
	}
	if !strings.Contains(rec.Body.String(), `"riskReward":"Infinity"`) {
		t.Errorf("infinite ratio not encoded as \"Infinity\": %s", rec.Body)
	}
	if ditz.Trades != 2 || ditz.WinRate != 50 || float64(ditz.RiskReward) != 2 {
		t.Errorf("ditz = %+v", ditz)
	}
}

func TestPerformanceSinceAndFilters(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/api/performance?since=3456000") // day 40
	var resp performanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	for _, st := range resp.Modes {
		want := 0
		if st.Mode == model.ModeDitz {
			want = 1
		}
		if st.Trades != want {
			t.Errorf("%s: trades=%d, want %d", st.Mode, st.Trades, want)
		}
	}

	rec = get(t, s, "/api/performance?min_market_cap=10")
	resp = performanceResponse{}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	for _, st := range resp.Modes {
		if st.Trades != 0 {
			t.Errorf("%s: market cap filter let %d trades through", st.Mode, st.Trades)
		}
	}

	if rec := get(t, s, "/api/performance?since=yesterday"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad since: status=%d", rec.Code)
	}
}

func TestSimulate(t *testing.T) {
	s, reg := newTestServer(t)

	rec := get(t, s, "/api/simulate?mode=quant&amount=1000")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	var res backtest.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	// two overlapping trades: days 10-20 and 15-30
	if res.MaxConcurrent != 2 || res.Eigenkapital != 2000 {
		t.Errorf("maxConcurrent=%d eigenkapital=%v", res.MaxConcurrent, res.Eigenkapital)
	}
	if res.Gewinn != 150 || res.Endkapital != 2150 {
		t.Errorf("gewinn=%v endkapital=%v", res.Gewinn, res.Endkapital)
	}
	if n := len(res.Equity); n == 0 || res.Equity[n-1].Value != res.Endkapital {
		t.Errorf("equity curve must end at endkapital: %+v", res.Equity)
	}

	if got := counterSum(t, reg, "signalengine_simulations_total"); got != 1 {
		t.Errorf("simulations_total=%v, want 1", got)
	}
}

func TestSimulateRejectsBadInput(t *testing.T) {
	s, _ := newTestServer(t)
	for _, target := range []string{
		"/api/simulate?mode=quant&amount=0",
		"/api/simulate?mode=quant&amount=-5",
		"/api/simulate?mode=quant&amount=NaN",
		"/api/simulate?mode=quant&amount=Inf",
		"/api/simulate?mode=quant&amount=-Inf",
		"/api/simulate?mode=quant",
		"/api/simulate?mode=nope&amount=100",
	} {
		if rec := get(t, s, target); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status=%d, want 400", target, rec.Code)
		}
	}
}

func TestSimulateNoTrades(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/api/simulate?mode=momentum&amount=1000")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var res backtest.Result
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res.Trades != 0 || res.Amount != 1000 || res.Equity == nil {
		t.Errorf("empty simulation = %+v", res)
	}
}

func TestIndicator(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/api/indicator?mode=quant&symbol=aaa")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	var ev struct {
		Strategy struct {
			Oscillators []model.Oscillator `json:"oscillators"`
		} `json:"strategy"`
		Update model.SignalUpdate `json:"update"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ev); err != nil {
		t.Fatal(err)
	}
	if len(ev.Strategy.Oscillators) == 0 {
		t.Error("no oscillator series")
	}
	if ev.Update.Symbol != "AAA" || ev.Update.Signal == "" || ev.Update.Signal == model.LabelNoData {
		t.Errorf("update = %+v", ev.Update)
	}

	rec = get(t, s, "/api/indicator?mode=quant&symbol=ZZZ")
	json.Unmarshal(rec.Body.Bytes(), &ev)
	if ev.Update.Signal != model.LabelNoData {
		t.Errorf("unknown symbol: signal=%s, want NO_DATA", ev.Update.Signal)
	}

	if rec := get(t, s, "/api/indicator?symbol=AAA"); rec.Code != http.StatusBadRequest {
		t.Errorf("missing mode: status=%d", rec.Code)
	}
}

func TestSignalsFallsBackToHub(t *testing.T) {
	s, _ := newTestServer(t)
	s.Hub.Seed([]model.SignalUpdate{
		{Mode: model.ModeQuant, Symbol: "BBB", Signal: model.LabelSell},
		{Mode: model.ModeQuant, Symbol: "AAA", Signal: model.LabelBuy},
		{Mode: model.ModeDitz, Symbol: "AAA", Signal: model.LabelWait},
	})

	var got []model.SignalUpdate
	json.Unmarshal(get(t, s, "/api/signals?mode=quant").Body.Bytes(), &got)
	if len(got) != 2 || got[0].Symbol != "AAA" {
		t.Errorf("hub signals = %+v", got)
	}

	s.Signals = &fakeSignalReader{updates: []model.SignalUpdate{{Mode: model.ModeQuant, Symbol: "CCC"}}}
	got = nil
	json.Unmarshal(get(t, s, "/api/signals?mode=quant").Body.Bytes(), &got)
	if len(got) != 1 || got[0].Symbol != "CCC" {
		t.Errorf("cached signals = %+v", got)
	}

	s.Signals = &fakeSignalReader{err: errors.New("redis down")}
	got = nil
	json.Unmarshal(get(t, s, "/api/signals?mode=quant").Body.Bytes(), &got)
	if len(got) != 2 {
		t.Errorf("cache failure should serve hub state, got %+v", got)
	}
}

func TestStreams(t *testing.T) {
	s, _ := newTestServer(t)
	var got []model.Performance
	json.Unmarshal(get(t, s, "/api/performance/streams?mode=ditz").Body.Bytes(), &got)
	if len(got) != 0 {
		t.Errorf("ditz streams = %+v", got)
	}
	json.Unmarshal(get(t, s, "/api/performance/streams").Body.Bytes(), &got)
	if len(got) != 1 || got[0].Signal != model.LabelHold {
		t.Errorf("all streams = %+v", got)
	}
}

func TestRequestCounting(t *testing.T) {
	s, reg := newTestServer(t)
	get(t, s, "/api/simulate?mode=quant&amount=0")
	get(t, s, "/api/performance")

	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/performance", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status=%d", rec.Code)
	}

	if got := counterSum(t, reg, "signalengine_http_requests_total"); got != 3 {
		t.Errorf("http_requests_total=%v, want 3", got)
	}
}

func TestParseSince(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		err  bool
	}{
		{"", 0, false},
		{"1700000000", 1700000000, false},
		{"2024-01-02", 1704153600, false},
		{"02/01/2024", 0, true},
	}
	for _, tt := range tests {
		got, err := parseSince(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("parseSince(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func counterSum(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}
