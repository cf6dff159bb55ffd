package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("RedisURL = %q", cfg.RedisURL)
	}
	if cfg.DefaultLang != "en" {
		t.Fatalf("DefaultLang = %q, want en", cfg.DefaultLang)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.RateWindow != 10*time.Second {
		t.Fatalf("RateWindow = %v, want 10s", cfg.RateWindow)
	}
	if cfg.RateThreshold != 6 {
		t.Fatalf("RateThreshold = %d, want 6", cfg.RateThreshold)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load without BOT_TOKEN succeeded")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("RATE_WINDOW", "30s")
	t.Setenv("WARN_COOLDOWN", "2m")
	t.Setenv("SUDO_USERS", "10, 20,bad,30")
	t.Setenv("OWNER_ID", "7")
	t.Setenv("LOG_LEVEL", "WARNING")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RateWindow != 30*time.Second {
		t.Fatalf("RateWindow = %v, want 30s", cfg.RateWindow)
	}
	if cfg.WarnCooldown != 2*time.Minute {
		t.Fatalf("WarnCooldown = %v, want 2m", cfg.WarnCooldown)
	}
	if got := cfg.SudoUsers; len(got) != 3 || got[0] != 10 || got[1] != 20 || got[2] != 30 {
		t.Fatalf("SudoUsers = %v, want [10 20 30]", got)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}

func TestIsSudo(t *testing.T) {
	cfg := Config{OwnerID: 7, SudoUsers: []int64{10}}

	if !cfg.IsSudo(7) || !cfg.IsSudo(10) {
		t.Fatal("owner or sudo user not recognized")
	}
	if cfg.IsSudo(99) {
		t.Fatal("arbitrary user recognized as sudo")
	}
	if (Config{}).IsSudo(0) {
		t.Fatal("zero user treated as owner of unconfigured bot")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("LOG_LEVEL", "verbose")

	if _, err := Load(); err == nil {
		t.Fatal("Load with invalid LOG_LEVEL succeeded")
	}
}
