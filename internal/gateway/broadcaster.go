package gateway

import (
	"strconv"
	"time"

	"signal-engine/internal/model"
)

// buildEnvelope wraps an encoded signal update for the websocket:
// {"type":"signal","key":"mode:symbol","data":{...},"ts":"...","seq":N}.
// Hand-built to avoid a second json.Marshal per broadcast.
func buildEnvelope(key string, data []byte, now time.Time, seq int64, initial bool) []byte {
	buf := make([]byte, 0, len(key)+len(data)+128)
	buf = append(buf, `{"type":"signal","key":"`...)
	buf = append(buf, key...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	if initial {
		buf = append(buf, `,"initial":true`...)
	}
	buf = append(buf, '}')
	return buf
}

// Broadcast records u as the latest update of its stream and fans it out
// to every client subscribed to its mode. Slow clients drop messages.
func (h *Hub) Broadcast(u model.SignalUpdate) {
	now := time.Now().UTC()
	key := u.Key()
	data := u.JSON()

	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.latest[key] = latestEntry{Update: u, Data: data, TS: now, Seq: seq}
	buf := buildEnvelope(key, data, now, seq, false)
	h.replay.Push(seq, u.Mode, buf)
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.wants(u.Mode) {
			continue
		}
		select {
		case client.send <- buf:
		default:
		}
	}
}
