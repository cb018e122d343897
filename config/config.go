package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"signal-engine/internal/logger"
	"signal-engine/internal/model"
)

// Config holds all application configuration. Values come from defaults,
// an optional config file (CONFIG_FILE) and environment variables, in
// increasing order of precedence.
type Config struct {
	// Infrastructure
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string
	HTTPAddr      string
	MetricsAddr   string

	// Scanner
	Modes        string        // comma-separated, e.g. "defensive,quant"
	BarInterval  string        // bar interval key in the store, e.g. "1d"
	HistoryDays  int           // bars older than this are not loaded (0 = all)
	ScanInterval time.Duration // 0 = single pass
	ScanWorkers  int
	SignalTTL    time.Duration

	// Alerts (all optional)
	WebhookURL     string
	TelegramToken  string
	TelegramChatID string

	LogLevel string
}

// Load reads configuration from the environment and CONFIG_FILE.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("sqlite_path", "data/signals.db")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("modes", "defensive,aggressive,quant,ditz,trader,momentum")
	v.SetDefault("bar_interval", "1d")
	v.SetDefault("history_days", 0)
	v.SetDefault("scan_interval", "0s")
	v.SetDefault("scan_workers", 4)
	v.SetDefault("signal_ttl", "48h")
	v.SetDefault("webhook_url", "")
	v.SetDefault("telegram_token", "")
	v.SetDefault("telegram_chat_id", "")
	v.SetDefault("log_level", "info")

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config read %s: %w", path, err)
		}
	}

	cfg := &Config{
		RedisAddr:      v.GetString("redis_addr"),
		RedisPassword:  v.GetString("redis_password"),
		RedisDB:        v.GetInt("redis_db"),
		SQLitePath:     v.GetString("sqlite_path"),
		HTTPAddr:       v.GetString("http_addr"),
		MetricsAddr:    v.GetString("metrics_addr"),
		Modes:          v.GetString("modes"),
		BarInterval:    v.GetString("bar_interval"),
		HistoryDays:    v.GetInt("history_days"),
		ScanInterval:   v.GetDuration("scan_interval"),
		ScanWorkers:    v.GetInt("scan_workers"),
		SignalTTL:      v.GetDuration("signal_ttl"),
		WebhookURL:     v.GetString("webhook_url"),
		TelegramToken:  v.GetString("telegram_token"),
		TelegramChatID: v.GetString("telegram_chat_id"),
		LogLevel:       v.GetString("log_level"),
	}
	if cfg.ScanWorkers <= 0 {
		cfg.ScanWorkers = 1
	}
	return cfg, nil
}

// ParseModes parses the Modes string into known modes, skipping unknown ones.
func (c *Config) ParseModes() []model.Mode {
	parts := strings.Split(c.Modes, ",")
	modes := make([]model.Mode, 0, len(parts))
	seen := make(map[model.Mode]bool, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		m, ok := model.ParseMode(p)
		if !ok {
			slog.Warn("config: skipping unknown mode", "mode", p)
			continue
		}
		if !seen[m] {
			seen[m] = true
			modes = append(modes, m)
		}
	}
	return modes
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	return logger.ParseLevel(c.LogLevel)
}
