package gateway

import (
	"sync"

	"signal-engine/internal/model"
)

// replayEntry holds one broadcast envelope for reconnect replay.
type replayEntry struct {
	Seq  int64
	Mode model.Mode
	Data []byte // pre-built envelope JSON
}

// ReplayBuffer is a fixed-size ring of recent signal envelopes. A client
// reconnecting with the last sequence it saw is replayed what it missed.
type ReplayBuffer struct {
	mu   sync.RWMutex
	buf  []replayEntry
	cap  int
	pos  int // next write position
	full bool
}

// NewReplayBuffer creates a replay buffer with the given capacity.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &ReplayBuffer{
		buf: make([]replayEntry, capacity),
		cap: capacity,
	}
}

// Push appends an envelope, overwriting the oldest when full.
// Sequences must be pushed in increasing order.
func (rb *ReplayBuffer) Push(seq int64, mode model.Mode, data []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.buf[rb.pos] = replayEntry{Seq: seq, Mode: mode, Data: data}
	rb.pos = (rb.pos + 1) % rb.cap
	if rb.pos == 0 && !rb.full {
		rb.full = true
	}
}

// Since returns the entries with seq > after, oldest first. ok is false
// when entries after `after` have already been evicted, in which case the
// caller needs a full snapshot instead.
func (rb *ReplayBuffer) Since(after int64) (entries []replayEntry, ok bool) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	n := rb.len()
	if n == 0 {
		return nil, true
	}
	if oldest := rb.buf[rb.index(0)].Seq; oldest > after+1 {
		return nil, false
	}
	for i := 0; i < n; i++ {
		if e := rb.buf[rb.index(i)]; e.Seq > after {
			entries = append(entries, e)
		}
	}
	return entries, true
}

// Len returns the number of entries currently in the buffer.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.len()
}

func (rb *ReplayBuffer) len() int {
	if rb.full {
		return rb.cap
	}
	return rb.pos
}

// index converts a logical index (0 = oldest) to a physical buffer index.
func (rb *ReplayBuffer) index(logical int) int {
	if rb.full {
		return (rb.pos + logical) % rb.cap
	}
	return logical
}
