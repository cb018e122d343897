package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"signal-engine/internal/model"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RedisAddr != "localhost:6379" || cfg.BarInterval != "1d" || cfg.ScanWorkers != 4 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.SignalTTL != 48*time.Hour {
		t.Errorf("SignalTTL=%v, want 48h", cfg.SignalTTL)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("SCAN_INTERVAL", "15m")
	t.Setenv("SCAN_WORKERS", "0")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RedisAddr != "redis:6380" {
		t.Errorf("RedisAddr=%q", cfg.RedisAddr)
	}
	if cfg.ScanInterval != 15*time.Minute {
		t.Errorf("ScanInterval=%v", cfg.ScanInterval)
	}
	if cfg.ScanWorkers != 1 {
		t.Errorf("ScanWorkers=%d, want floor of 1", cfg.ScanWorkers)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel=%v", cfg.SlogLevel())
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.yaml")
	if err := os.WriteFile(path, []byte("sqlite_path: /tmp/x.db\nmodes: quant\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SQLitePath != "/tmp/x.db" || cfg.Modes != "quant" {
		t.Errorf("file values not applied: %+v", cfg)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestParseModes(t *testing.T) {
	cfg := &Config{Modes: "quant, Defensive,,bogus,quant"}
	got := cfg.ParseModes()
	want := []model.Mode{model.ModeQuant, model.ModeDefensive}
	if len(got) != len(want) {
		t.Fatalf("ParseModes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ParseModes[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
