package redis

import (
	"context"
	"log/slog"
	"sync"

	"signal-engine/internal/model"
)

// BufferedPublisher guards a signal publisher with a circuit breaker.
// Updates that fail or are rejected are held locally, latest per stream,
// and replayed once the breaker closes again.
type BufferedPublisher struct {
	inner model.SignalCache
	cb    *CircuitBreaker
	ctx   context.Context

	mu      sync.Mutex
	pending map[string]model.SignalUpdate
	order   []string // stream keys in first-buffered order
	maxBuf  int

	// Callbacks
	OnBuffer func()          // called when an update is buffered (for metrics)
	OnFlush  func(count int) // called after replaying buffered updates
}

// NewBufferedPublisher wraps inner. maxStreams bounds the number of
// buffered streams; the oldest is dropped when it is exceeded.
func NewBufferedPublisher(ctx context.Context, inner model.SignalCache, cb *CircuitBreaker, maxStreams int) *BufferedPublisher {
	if maxStreams <= 0 {
		maxStreams = 10000
	}
	bp := &BufferedPublisher{
		inner:   inner,
		cb:      cb,
		ctx:     ctx,
		pending: make(map[string]model.SignalUpdate),
		maxBuf:  maxStreams,
	}

	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		if to == StateClosed {
			go bp.Flush(bp.ctx)
		}
	}
	return bp
}

// PublishSignal publishes through the breaker. A rejected update is
// buffered and reported as success; a failed one is buffered and its
// error returned.
func (bp *BufferedPublisher) PublishSignal(ctx context.Context, u model.SignalUpdate) error {
	err := bp.cb.Execute(func() error {
		return bp.inner.PublishSignal(ctx, u)
	})
	if err == nil {
		bp.discard(u.Key())
		return nil
	}
	bp.buffer(u)
	if err == ErrCircuitOpen {
		return nil
	}
	return err
}

func (bp *BufferedPublisher) buffer(u model.SignalUpdate) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	key := u.Key()
	if _, ok := bp.pending[key]; !ok {
		if len(bp.order) >= bp.maxBuf {
			delete(bp.pending, bp.order[0])
			bp.order = bp.order[1:]
		}
		bp.order = append(bp.order, key)
	}
	bp.pending[key] = u

	if bp.OnBuffer != nil {
		bp.OnBuffer()
	}
}

// discard drops a buffered update superseded by a successful publish.
func (bp *BufferedPublisher) discard(key string) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if _, ok := bp.pending[key]; !ok {
		return
	}
	delete(bp.pending, key)
	for i, k := range bp.order {
		if k == key {
			bp.order = append(bp.order[:i], bp.order[i+1:]...)
			break
		}
	}
}

// Flush replays buffered updates in buffering order and returns how many
// were published. It stops at the first failure; the rest stay buffered.
func (bp *BufferedPublisher) Flush(ctx context.Context) int {
	bp.mu.Lock()
	if len(bp.order) == 0 {
		bp.mu.Unlock()
		return 0
	}
	order := bp.order
	batch := bp.pending
	bp.order = nil
	bp.pending = make(map[string]model.SignalUpdate)
	bp.mu.Unlock()

	flushed := 0
	for i, key := range order {
		if err := bp.inner.PublishSignal(ctx, batch[key]); err != nil {
			slog.Warn("buffered publish failed", "key", key, "error", err)
			for _, k := range order[i:] {
				bp.requeue(batch[k])
			}
			break
		}
		flushed++
	}

	slog.Info("buffered signals flushed", "count", flushed)
	if bp.OnFlush != nil {
		bp.OnFlush(flushed)
	}
	return flushed
}

// requeue re-buffers u unless a newer update for its stream arrived meanwhile.
func (bp *BufferedPublisher) requeue(u model.SignalUpdate) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	key := u.Key()
	if _, ok := bp.pending[key]; ok {
		return
	}
	bp.pending[key] = u
	bp.order = append(bp.order, key)
}

// PendingCount returns the number of buffered streams.
func (bp *BufferedPublisher) PendingCount() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.order)
}
