package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"signal-engine/internal/backtest"
	"signal-engine/internal/metrics"
	"signal-engine/internal/model"
	"signal-engine/internal/portfolio"
	"signal-engine/internal/scanner"
	"signal-engine/internal/strategy"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// HistoryReader returns past signal updates of a mode, newest first.
type HistoryReader interface {
	History(ctx context.Context, mode model.Mode, count int64) ([]model.SignalUpdate, error)
}

// Server serves the REST API and the websocket endpoint. Trades, Bars,
// Symbols and Hub are required; the rest are optional.
type Server struct {
	Trades  model.TradeReader
	Bars    model.BarSource
	Symbols model.SymbolSource
	Signals model.SignalReader
	History HistoryReader
	Perf    model.PerformanceReader
	Hub     *Hub
	Health  http.Handler
	Metrics *metrics.Metrics

	Interval string // default bar interval, e.g. "1d"
	Now      func() time.Time
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// RegisterRoutes registers all HTTP routes on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)

	s.handle(mux, "/api/health", s.handleHealth)
	s.handle(mux, "/api/signals", s.handleSignals)
	s.handle(mux, "/api/signals/history", s.handleSignalHistory)
	s.handle(mux, "/api/indicator", s.handleIndicator)
	s.handle(mux, "/api/performance", s.handlePerformance)
	s.handle(mux, "/api/performance/streams", s.handleStreams)
	s.handle(mux, "/api/simulate", s.handleSimulate)
}

// handle wraps a REST handler with CORS, method checks and request counting.
func (s *Server) handle(mux *http.ServeMux, route string, fn http.HandlerFunc) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		SetCORS(rec)
		switch r.Method {
		case http.MethodOptions:
			rec.WriteHeader(http.StatusOK)
		case http.MethodGet:
			fn(rec, r)
		default:
			writeError(rec, http.StatusMethodNotAllowed, "method not allowed")
		}
		if s.Metrics != nil {
			s.Metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// parseSince accepts epoch seconds or a YYYY-MM-DD date. Empty is 0.
func parseSince(v string) (int64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return 0, errors.New("since must be epoch seconds or YYYY-MM-DD")
	}
	return t.Unix(), nil
}

// parseModes reads a comma-separated mode list. Empty means all modes.
func parseModes(v string) ([]model.Mode, error) {
	var modes []model.Mode
	for _, p := range strings.Split(v, ",") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		m, ok := model.ParseMode(p)
		if !ok {
			return nil, errors.New("unknown mode " + strconv.Quote(strings.TrimSpace(p)))
		}
		modes = append(modes, m)
	}
	return modes, nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	modes, err := parseModes(q.Get("modes"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lastSeq, _ := strconv.ParseInt(q.Get("last_seq"), 10, 64)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}
	s.Hub.HandleWSRequest(conn, modes, lastSeq)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Health != nil {
		s.Health.ServeHTTP(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"ws_clients": s.Hub.ClientCount(),
		"seq":        s.Hub.Seq(),
	})
}

// handleSignals returns the latest signal of every stream of a mode,
// read from the cache when available and from the hub otherwise.
func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	var mode model.Mode
	if v := r.URL.Query().Get("mode"); v != "" {
		m, ok := model.ParseMode(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown mode")
			return
		}
		mode = m
	}

	if s.Signals != nil && mode != "" {
		updates, err := s.Signals.LatestForMode(r.Context(), mode)
		if err == nil {
			writeJSON(w, http.StatusOK, updates)
			return
		}
		slog.Warn("signal cache read failed, serving hub state", "mode", mode, "error", err)
	}
	writeJSON(w, http.StatusOK, s.Hub.Latest(mode))
}

func (s *Server) handleSignalHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, ok := model.ParseMode(q.Get("mode"))
	if !ok {
		writeError(w, http.StatusBadRequest, "mode is required")
		return
	}
	if s.History == nil {
		writeError(w, http.StatusServiceUnavailable, "signal history unavailable")
		return
	}
	limit := int64(100)
	if l, err := strconv.ParseInt(q.Get("limit"), 10, 64); err == nil && l > 0 && l <= 5000 {
		limit = l
	}
	updates, err := s.History.History(r.Context(), mode, limit)
	if err != nil {
		slog.Error("signal history read failed", "mode", mode, "error", err)
		writeError(w, http.StatusBadGateway, "signal history read failed")
		return
	}
	writeJSON(w, http.StatusOK, updates)
}

// handleIndicator computes one stream on demand: oscillator series,
// trades, markers, signal and stats.
func (s *Server) handleIndicator(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, ok := model.ParseMode(q.Get("mode"))
	if !ok {
		writeError(w, http.StatusBadRequest, "mode is required")
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(q.Get("symbol")))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	interval := q.Get("interval")
	if interval == "" {
		interval = s.Interval
	}

	ctx := r.Context()
	bars, err := s.Bars.ReadBars(ctx, symbol, interval, 0)
	if err != nil {
		slog.Error("bar read failed", "symbol", symbol, "interval", interval, "error", err)
		writeError(w, http.StatusInternalServerError, "bar read failed")
		return
	}

	sym := model.Symbol{Symbol: symbol}
	if s.Symbols != nil {
		if all, err := s.Symbols.ListSymbols(ctx); err == nil {
			for _, candidate := range all {
				if candidate.Symbol == symbol {
					sym = candidate
					break
				}
			}
		}
	}

	ev, err := scanner.Evaluate(mode, sym, bars, s.now().Unix())
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, strategy.ErrUnknownMode) {
			code = http.StatusBadRequest
		}
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

type performanceResponse struct {
	Since   int64             `json:"since"`
	Filters portfolio.Filters `json:"filters"`
	Modes   []portfolio.Stats `json:"modes"`
}

// handlePerformance aggregates persisted trades per mode.
func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	since, err := parseSince(q.Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	modes, err := parseModes(q.Get("modes"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filters := portfolio.ParseFilters(q)

	rows, err := s.Trades.ReadModeTrades(r.Context(), modes, 0)
	if err != nil {
		slog.Error("trade read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "trade read failed")
		return
	}
	stats := portfolio.Aggregate(rows, since, filters)
	writeJSON(w, http.StatusOK, performanceResponse{
		Since:   since,
		Filters: filters,
		Modes:   portfolio.Sorted(stats),
	})
}

// handleStreams lists the per-stream summaries saved by the last scan.
func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	if s.Perf == nil {
		writeError(w, http.StatusServiceUnavailable, "stream summaries unavailable")
		return
	}
	var mode model.Mode
	if v := r.URL.Query().Get("mode"); v != "" {
		m, ok := model.ParseMode(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown mode")
			return
		}
		mode = m
	}
	perf, err := s.Perf.ReadPerformance(r.Context(), mode)
	if err != nil {
		slog.Error("performance read failed", "mode", mode, "error", err)
		writeError(w, http.StatusInternalServerError, "performance read failed")
		return
	}
	if perf == nil {
		perf = []model.Performance{}
	}
	writeJSON(w, http.StatusOK, perf)
}

// handleSimulate invests a fixed amount in every filtered trade of a mode.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, ok := model.ParseMode(q.Get("mode"))
	if !ok {
		writeError(w, http.StatusBadRequest, "mode is required")
		return
	}
	amount, err := strconv.ParseFloat(q.Get("amount"), 64)
	if err != nil || !(amount > 0) || math.IsInf(amount, 0) {
		writeError(w, http.StatusBadRequest, "amount must be a positive number")
		return
	}
	since, err := parseSince(q.Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := s.Trades.ReadModeTrades(r.Context(), []model.Mode{mode}, 0)
	if err != nil {
		slog.Error("trade read failed", "mode", mode, "error", err)
		writeError(w, http.StatusInternalServerError, "trade read failed")
		return
	}
	trades := portfolio.FilterTrades(rows, since, portfolio.ParseFilters(q))

	if s.Metrics != nil {
		s.Metrics.SimulationsTotal.Inc()
	}
	res := backtest.Simulate(trades, amount, s.now().Unix())
	if res == nil {
		res = &backtest.Result{
			Amount:    amount,
			Equity:    []model.EquityPoint{},
			Positions: []backtest.SimTrade{},
		}
	}
	writeJSON(w, http.StatusOK, res)
}
