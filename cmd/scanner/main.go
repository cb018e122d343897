package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"signal-engine/config"
	"signal-engine/internal/logger"
	"signal-engine/internal/metrics"
	"signal-engine/internal/model"
	"signal-engine/internal/notification"
	"signal-engine/internal/scanner"
	redisstore "signal-engine/internal/store/redis"
	sqlitestore "signal-engine/internal/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("scanner", logger.ParseLevel("info")).Error("config load failed", "error", err)
		os.Exit(1)
	}
	log := logger.Init("scanner", cfg.SlogLevel())

	modes := cfg.ParseModes()
	if len(modes) == 0 {
		log.Error("no valid modes configured", "modes", cfg.Modes)
		os.Exit(1)
	}
	log.Info("starting", "modes", modes, "interval", cfg.BarInterval, "every", cfg.ScanInterval.String(), "workers", cfg.ScanWorkers)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics(nil)
	health := metrics.NewHealthStatus(true)
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	health.SetModes(names)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	// ---- SQLite ----
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{
		DBPath: cfg.SQLitePath,
		OnCommit: func(d time.Duration) {
			prom.SQLiteCommitDur.Observe(d.Seconds())
		},
	})
	if err != nil {
		log.Error("sqlite init failed", "error", err)
		os.Exit(1)
	}
	defer sqlWriter.Close()

	sqlReader, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Error("sqlite reader init failed", "error", err)
		os.Exit(1)
	}
	defer sqlReader.Close()
	health.SetSQLiteOK(true)

	// ---- Redis (optional; updates are buffered while it is down) ----
	var cache model.SignalCache
	redisWriter, err := redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.SignalTTL,
		OnWrite: func(d time.Duration) {
			prom.RedisWriteDur.Observe(d.Seconds())
		},
	})
	if err != nil {
		log.Warn("redis init failed, continuing without signal cache", "error", err)
		health.SetRedisConnected(false)
		health.StartLivenessChecker(ctx, nil, sqlWriter.DB(), 10*time.Second)
	} else {
		defer redisWriter.Close()
		health.SetRedisConnected(true)
		health.StartLivenessChecker(ctx, redisWriter.Client(), sqlWriter.DB(), 10*time.Second)

		cb := redisstore.NewCircuitBreaker(5, 30*time.Second)
		cb.OnStateChange = func(from, to redisstore.State) {
			prom.RedisCircuitBreakerState.Set(float64(to))
			if to == redisstore.StateOpen {
				prom.RedisCircuitBreakerTrips.Inc()
			}
			log.Warn("redis circuit breaker", "from", from.String(), "to", to.String())
		}
		buffered := redisstore.NewBufferedPublisher(ctx, redisWriter, cb, len(modes)*5000)
		buffered.OnFlush = func(count int) {
			log.Info("replayed buffered signals", "count", count)
		}
		cache = buffered
	}

	// ---- Alerts ----
	var alerts scanner.Observer
	var notifiers notification.Multi
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if len(notifiers) > 0 {
		alerts = notification.NewSignalAlerter(notifiers)
		log.Info("signal alerts enabled", "channels", len(notifiers))
	}

	// ---- Scanner ----
	sc := scanner.New(scanner.Config{
		Modes:       modes,
		Interval:    cfg.BarInterval,
		HistoryDays: cfg.HistoryDays,
		Workers:     cfg.ScanWorkers,
	}, scanner.Deps{
		Bars:    sqlReader,
		Symbols: sqlReader,
		Trades:  sqlWriter,
		Cache:   cache,
		Alerts:  alerts,
		Metrics: prom,
		Health:  health,
	})

	runErr := sc.Run(ctx, cfg.ScanInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)

	if runErr != nil {
		log.Error("scanner failed", "error", runErr)
		os.Exit(1)
	}
	log.Info("stopped", "modes", strings.Join(names, ","))
}
