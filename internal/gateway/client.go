package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"signal-engine/internal/model"
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// modes the client subscribed to; empty receives every mode
	mu    sync.RWMutex
	modes map[model.Mode]bool
}

// controlMsg is a client→server message.
//
//	{"type":"SUBSCRIBE","modes":["quant","ditz"]}
//	{"type":"UNSUBSCRIBE","modes":["ditz"]}
//	{"ping":1700000000000}
type controlMsg struct {
	Type  string   `json:"type"`
	Modes []string `json:"modes"`
	Ping  int64    `json:"ping"`
}

func newClient(h *Hub, conn *websocket.Conn, modes []model.Mode) *Client {
	c := &Client{
		conn:  conn,
		send:  make(chan []byte, 256),
		hub:   h,
		modes: make(map[model.Mode]bool, len(modes)),
	}
	for _, m := range modes {
		c.modes[m] = true
	}
	return c
}

func (c *Client) wants(mode model.Mode) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.modes) == 0 || c.modes[mode]
}

// sendInitialState replays the updates after lastSeq when the ring still
// holds them, and sends the latest snapshot of every wanted stream otherwise.
func (c *Client) sendInitialState(lastSeq int64) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}

	if lastSeq > 0 {
		if entries, ok := c.hub.replay.Since(lastSeq); ok {
			for _, e := range entries {
				if c.wants(e.Mode) {
					c.trySend(e.Data)
				}
			}
			return
		}
	}
	c.sendSnapshotLocked(nil)
}

// sendSnapshotLocked sends the latest entry of each wanted stream, limited
// to only when non-nil. The caller holds hub.mu.
func (c *Client) sendSnapshotLocked(only map[model.Mode]bool) {
	for key, entry := range c.hub.latest {
		mode := entry.Update.Mode
		if !c.wants(mode) || (only != nil && !only[mode]) {
			continue
		}
		c.trySend(buildEnvelope(key, entry.Data, entry.TS, entry.Seq, true))
	}
}

func (c *Client) trySend(msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// coalesce queued messages into one frame, newline separated
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(next)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		slog.Info("ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var msg controlMsg
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}

		switch msg.Type {
		case "SUBSCRIBE":
			added := c.subscribe(msg.Modes)
			c.hub.mu.RLock()
			if c.hub.clients[c] {
				c.sendSnapshotLocked(added)
			}
			c.hub.mu.RUnlock()

		case "UNSUBSCRIBE":
			c.unsubscribe(msg.Modes)

		default:
			if msg.Ping > 0 {
				pong, _ := json.Marshal(map[string]interface{}{
					"type":      "pong",
					"ping":      msg.Ping,
					"server_ts": time.Now().UnixMilli(),
				})
				c.hub.mu.RLock()
				if c.hub.clients[c] {
					c.trySend(pong)
				}
				c.hub.mu.RUnlock()
			}
		}
	}
}

// subscribe adds known modes to the filter and returns the ones added.
func (c *Client) subscribe(names []string) map[model.Mode]bool {
	added := make(map[model.Mode]bool)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range names {
		m, ok := model.ParseMode(name)
		if !ok || c.modes[m] {
			continue
		}
		c.modes[m] = true
		added[m] = true
	}
	return added
}

func (c *Client) unsubscribe(names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range names {
		if m, ok := model.ParseMode(name); ok {
			delete(c.modes, m)
		}
	}
}
