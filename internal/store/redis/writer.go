package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"signal-engine/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultSignalTTL = 48 * time.Hour
	// historyMaxLen caps each per-mode signal history stream.
	historyMaxLen = 5000
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	TTL      time.Duration // lifetime of the latest-signal keys

	// OnWrite, if set, receives the latency of every publish pipeline.
	OnWrite func(time.Duration)
}

// Writer caches and publishes signal updates.
type Writer struct {
	client  *goredis.Client
	ttl     time.Duration
	onWrite func(time.Duration)
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client, err := connect(cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		return nil, err
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultSignalTTL
	}
	return &Writer{client: client, ttl: ttl, onWrite: cfg.OnWrite}, nil
}

func connect(addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redis connected", "addr", addr)
	return client, nil
}

// historyStream is the per-mode stream holding past updates.
func historyStream(mode model.Mode) string {
	return "stream:sig:" + string(mode)
}

// PublishSignal writes the update in one pipeline: SET of the latest
// value with TTL, XADD to the mode's history stream, PUBLISH to the
// stream's channel.
func (w *Writer) PublishSignal(ctx context.Context, u model.SignalUpdate) error {
	start := time.Now()
	data := string(u.JSON())

	pipe := w.client.Pipeline()
	pipe.Set(ctx, u.CacheKey(), data, w.ttl)
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: historyStream(u.Mode),
		MaxLen: historyMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": data},
	})
	pipe.Publish(ctx, u.PubSubChannel(), data)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish %s: %w", u.Key(), err)
	}
	if w.onWrite != nil {
		w.onWrite(time.Since(start))
	}
	return nil
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
