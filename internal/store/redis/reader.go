package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"signal-engine/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	signalPattern = "pub:sig:*"
	scanBatch     = 500
)

// ReaderConfig configures the Redis reader.
type ReaderConfig struct {
	Addr     string
	Password string
	DB       int
}

// Reader reads cached signal updates and subscribes to live ones.
type Reader struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (r *Reader) Client() *goredis.Client { return r.client }

// NewReader creates a new Redis Reader and pings the server.
func NewReader(cfg ReaderConfig) (*Reader, error) {
	client, err := connect(cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		return nil, err
	}
	return &Reader{client: client}, nil
}

func decodeUpdate(payload string) (model.SignalUpdate, bool) {
	var u model.SignalUpdate
	if err := json.Unmarshal([]byte(payload), &u); err != nil || u.Mode == "" || u.Symbol == "" {
		return model.SignalUpdate{}, false
	}
	return u, true
}

// Latest returns the cached update of one stream, or nil when absent.
func (r *Reader) Latest(ctx context.Context, mode model.Mode, symbol string) (*model.SignalUpdate, error) {
	key := (&model.SignalUpdate{Mode: mode, Symbol: symbol}).CacheKey()
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	u, ok := decodeUpdate(data)
	if !ok {
		return nil, fmt.Errorf("redis decode %s", key)
	}
	return &u, nil
}

// LatestForMode returns every cached update of mode, ordered by symbol.
func (r *Reader) LatestForMode(ctx context.Context, mode model.Mode) ([]model.SignalUpdate, error) {
	pattern := "sig:" + string(mode) + ":*"
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget %s: %w", pattern, err)
	}

	out := make([]model.SignalUpdate, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue // expired between SCAN and MGET
		}
		if u, ok := decodeUpdate(s); ok {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// History returns up to count past updates of mode, newest first.
func (r *Reader) History(ctx context.Context, mode model.Mode, count int64) ([]model.SignalUpdate, error) {
	msgs, err := r.client.XRevRangeN(ctx, historyStream(mode), "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("redis xrevrange %s: %w", historyStream(mode), err)
	}
	out := make([]model.SignalUpdate, 0, len(msgs))
	for _, msg := range msgs {
		data, ok := msg.Values["data"].(string)
		if !ok {
			continue
		}
		if u, ok := decodeUpdate(data); ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// Subscribe relays every published signal update into out until ctx is
// cancelled. Malformed payloads are skipped.
func (r *Reader) Subscribe(ctx context.Context, out chan<- model.SignalUpdate) error {
	pubsub := r.client.PSubscribe(ctx, signalPattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe %s: %w", signalPattern, err)
	}
	slog.Info("redis subscribed", "pattern", signalPattern)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			u, ok := decodeUpdate(msg.Payload)
			if !ok {
				slog.Warn("redis dropped malformed signal", "channel", msg.Channel)
				continue
			}
			select {
			case out <- u:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Close closes the Redis client.
func (r *Reader) Close() error {
	return r.client.Close()
}
