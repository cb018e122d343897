package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signal-engine/config"
	"signal-engine/internal/gateway"
	"signal-engine/internal/logger"
	"signal-engine/internal/metrics"
	"signal-engine/internal/model"
	redisstore "signal-engine/internal/store/redis"
	sqlitestore "signal-engine/internal/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("api_gateway", logger.ParseLevel("info")).Error("config load failed", "error", err)
		os.Exit(1)
	}
	log := logger.Init("api_gateway", cfg.SlogLevel())
	log.Info("starting", "addr", cfg.HTTPAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Metrics & health ----
	prom := metrics.NewMetrics(nil)
	health := metrics.NewHealthStatus(false)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- SQLite (read side) ----
	sqlReader, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Error("sqlite open failed", "path", cfg.SQLitePath, "error", err)
		os.Exit(1)
	}
	defer sqlReader.Close()
	health.SetSQLiteOK(true)

	hub := gateway.NewHub(prom)
	srv := &gateway.Server{
		Trades:   sqlReader,
		Bars:     sqlReader,
		Symbols:  sqlReader,
		Perf:     sqlReader,
		Hub:      hub,
		Health:   health,
		Metrics:  prom,
		Interval: cfg.BarInterval,
	}

	// ---- Redis (optional: live signals, history) ----
	redisReader, err := redisstore.NewReader(redisstore.ReaderConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Warn("redis unavailable, serving without live signals", "error", err)
		health.StartLivenessChecker(ctx, nil, sqlReader.DB(), 10*time.Second)
	} else {
		defer redisReader.Close()
		health.SetRedisConnected(true)
		health.StartLivenessChecker(ctx, redisReader.Client(), sqlReader.DB(), 10*time.Second)

		srv.Signals = redisReader
		srv.History = redisReader

		for _, m := range model.AllModes {
			updates, err := redisReader.LatestForMode(ctx, m)
			if err != nil {
				log.Warn("seed failed", "mode", m, "error", err)
				continue
			}
			hub.Seed(updates)
		}
		go hub.Run(ctx, redisReader)
	}

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("serving", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			cancel()
		}
	}()

	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
}
