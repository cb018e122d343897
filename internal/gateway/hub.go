package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"signal-engine/internal/metrics"
	"signal-engine/internal/model"
)

// Subscriber delivers live signal updates until ctx is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, out chan<- model.SignalUpdate) error
}

// Hub manages websocket clients and fans signal updates out to them.
// It keeps the latest update of every stream so new clients start with
// a full picture, and a replay ring so reconnecting clients catch up.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seq     int64

	replay *ReplayBuffer
	prom   *metrics.Metrics
}

type latestEntry struct {
	Update model.SignalUpdate
	Data   json.RawMessage
	TS     time.Time
	Seq    int64
}

// NewHub creates a Hub. prom may be nil.
func NewHub(prom *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		latest:  make(map[string]latestEntry),
		replay:  NewReplayBuffer(1000),
		prom:    prom,
	}
}

// Seed loads cached updates as the latest state without broadcasting them.
func (h *Hub) Seed(updates []model.SignalUpdate) {
	now := time.Now().UTC()
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, u := range updates {
		h.latest[u.Key()] = latestEntry{Update: u, Data: u.JSON(), TS: now}
	}
}

// Run relays updates from sub to all clients until ctx is cancelled.
// A dropped subscription is retried with capped backoff.
func (h *Hub) Run(ctx context.Context, sub Subscriber) {
	ch := make(chan model.SignalUpdate, 1024)
	go func() {
		backoff := time.Second
		for {
			err := sub.Subscribe(ctx, ch)
			if ctx.Err() != nil {
				return
			}
			slog.Warn("signal subscription ended, retrying", "error", err, "backoff", backoff.String())
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, 30*time.Second)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case u := <-ch:
			h.Broadcast(u)
		}
	}
}

// HandleWSRequest registers an upgraded connection. modes restricts the
// streams it receives (nil = all). A client resuming after lastSeq is
// replayed what it missed; otherwise it receives the latest snapshot.
func (h *Hub) HandleWSRequest(conn *websocket.Conn, modes []model.Mode, lastSeq int64) {
	client := newClient(h, conn, modes)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	if h.prom != nil {
		h.prom.WSClients.Set(float64(count))
	}
	slog.Info("ws client connected", "clients", count, "modes", len(modes), "last_seq", lastSeq)

	go client.sendInitialState(lastSeq)
	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()
	close(c.send)

	if h.prom != nil {
		h.prom.WSClients.Set(float64(count))
	}
}

// Latest returns the latest update of every stream of mode (all modes
// when mode is empty), ordered by key.
func (h *Hub) Latest(mode model.Mode) []model.SignalUpdate {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]model.SignalUpdate, 0, len(h.latest))
	for _, e := range h.latest {
		if mode == "" || e.Update.Mode == mode {
			out = append(out, e.Update)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Seq returns the sequence number of the last broadcast.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
