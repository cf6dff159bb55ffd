// Package config loads bot configuration from the environment with defaults
// and validation. A .env file in the working directory is honored when
// present.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/guardifyhq/guardify/internal/consts"
)

// Config holds all runtime settings for the bot.
type Config struct {
	// Telegram
	BotToken string  // BOT_TOKEN, required
	SendRate float64 // SEND_RATE, outbound messages per second, 0 disables throttling

	// Access control
	OwnerID   int64   // OWNER_ID, user allowed to manage global bans
	SudoUsers []int64 // SUDO_USERS, comma-separated user IDs with gban rights

	// Observability
	LoggerChatID int64 // LOGGER_CHAT_ID, chat receiving global moderation notices, 0 disables

	// Storage
	RedisURL string // REDIS_URL, e.g. redis://localhost:6379/0

	// Localization and word lists
	DefaultLang    string // DEFAULT_LANG
	LangDir        string // LANG_DIR, directory of per-language JSON files
	SlangFile      string // SLANG_FILE, optional newline-delimited word list
	SupportChatURL string // SUPPORT_CHAT_URL, shown in /start replies

	// Caching
	CacheTTL      time.Duration // CACHE_TTL
	CacheSize     int           // CACHE_SIZE, entries per namespace
	GbanCacheSize int           // GBAN_CACHE_SIZE

	// Guard tuning
	RateWindow    time.Duration // RATE_WINDOW, warning-storm window
	RateThreshold int           // RATE_THRESHOLD, warnings allowed per window
	WarnCooldown  time.Duration // WARN_COOLDOWN, per-user warn cooldown
	BotPermsTTL   time.Duration // BOT_PERMS_TTL, own-permission cache lifetime

	// Logging
	LogLevel string // LOG_LEVEL: debug|info|warn|error
}

// Load reads configuration from the environment (and .env, if present),
// applies defaults, and validates the result.
func Load() (Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := Config{
		BotToken: getenv("BOT_TOKEN", ""),
		SendRate: getfloat("SEND_RATE", 0),

		OwnerID:   getint64("OWNER_ID", 0),
		SudoUsers: splitIDs(getenv("SUDO_USERS", "")),

		LoggerChatID: getint64("LOGGER_CHAT_ID", 0),

		RedisURL: getenv("REDIS_URL", "redis://localhost:6379/0"),

		DefaultLang:    getenv("DEFAULT_LANG", "en"),
		LangDir:        getenv("LANG_DIR", "langs"),
		SlangFile:      getenv("SLANG_FILE", ""),
		SupportChatURL: getenv("SUPPORT_CHAT_URL", ""),

		CacheTTL:      getdur("CACHE_TTL", consts.DefaultCacheTTL),
		CacheSize:     getint("CACHE_SIZE", consts.DefaultCacheSize),
		GbanCacheSize: getint("GBAN_CACHE_SIZE", consts.DefaultGbanCacheSize),

		RateWindow:    getdur("RATE_WINDOW", consts.DefaultRateWindow),
		RateThreshold: getint("RATE_THRESHOLD", consts.DefaultRateThreshold),
		WarnCooldown:  getdur("WARN_COOLDOWN", consts.DefaultWarnCooldown),
		BotPermsTTL:   getdur("BOT_PERMS_TTL", consts.DefaultBotPermsTTL),

		LogLevel: strings.ToLower(getenv("LOG_LEVEL", "info")),
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	if strings.TrimSpace(cfg.BotToken) == "" {
		return cfg, errors.New("BOT_TOKEN must not be empty")
	}
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return cfg, errors.New("REDIS_URL must not be empty")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	if cfg.SendRate < 0 {
		return cfg, errors.New("SEND_RATE must be >= 0")
	}
	if cfg.CacheTTL <= 0 || cfg.RateWindow <= 0 || cfg.WarnCooldown <= 0 || cfg.BotPermsTTL <= 0 {
		return cfg, errors.New("cache and guard durations must be positive")
	}
	if cfg.CacheSize < 1 || cfg.GbanCacheSize < 1 {
		return cfg, errors.New("cache sizes must be >= 1")
	}
	if cfg.RateThreshold < 1 {
		return cfg, errors.New("RATE_THRESHOLD must be >= 1")
	}

	return cfg, nil
}

// IsSudo reports whether the user may run global moderation commands.
func (c Config) IsSudo(userID int64) bool {
	if userID == c.OwnerID && userID != 0 {
		return true
	}
	for _, id := range c.SudoUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitIDs(s string) []int64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if id, err := strconv.ParseInt(p, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}
