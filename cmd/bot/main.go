package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"

	"github.com/guardifyhq/guardify/internal/bot"
	"github.com/guardifyhq/guardify/internal/cache"
	"github.com/guardifyhq/guardify/internal/config"
	"github.com/guardifyhq/guardify/internal/consts"
	"github.com/guardifyhq/guardify/internal/guard"
	"github.com/guardifyhq/guardify/internal/lang"
	"github.com/guardifyhq/guardify/internal/platform"
	"github.com/guardifyhq/guardify/internal/pretender"
	"github.com/guardifyhq/guardify/internal/slang"
	"github.com/guardifyhq/guardify/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	redisOptions, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to parse Redis URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOptions)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	slog.Info("Connected to Redis")

	st := store.New(rdb, logger)

	cacheManager := cache.NewManager(cfg.CacheSize, cfg.GbanCacheSize, cfg.CacheTTL, logger)
	if err := cacheManager.Preload(ctx, st); err != nil {
		// The bot still works, gban checks just start from a cold cache.
		slog.Warn("Gban cache preload failed", "error", err)
	}

	langs := lang.Load(cfg.LangDir, cfg.DefaultLang, logger)

	var slangList *slang.List
	if cfg.SlangFile != "" {
		slangList, err = slang.LoadFile(cfg.SlangFile)
		if err != nil {
			slog.Error("Failed to load slang list", "file", cfg.SlangFile, "error", err)
			os.Exit(1)
		}
		slog.Info("Slang list loaded", "file", cfg.SlangFile, "words", slangList.Len())
	} else {
		slangList = slang.NewList(nil)
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		slog.Error("Failed to connect to Telegram", "error", err)
		os.Exit(1)
	}
	tg := platform.NewTelegram(api, cfg.SendRate, logger)

	tracker := guard.NewTracker(tg, guard.TrackerConfig{
		Window:    cfg.RateWindow,
		Threshold: cfg.RateThreshold,
		Cooldown:  cfg.WarnCooldown,
		PermsTTL:  cfg.BotPermsTTL,
	}, logger)

	service := guard.NewService(guard.ServiceDeps{
		Cache:       cacheManager,
		Store:       st,
		Client:      tg,
		Tracker:     tracker,
		Lang:        langs,
		Slang:       slangList,
		Pretender:   pretender.New(consts.DefaultCacheSize, cfg.CacheTTL),
		DefaultLang: cfg.DefaultLang,
		Logger:      logger,
	})
	scheduler := guard.NewScheduler(tg, service, guard.SystemClock, logger)
	service.AttachScheduler(scheduler)

	b := bot.New(tg, service, st, langs, cfg, logger)
	go b.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down bot...")
	b.Stop()

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := scheduler.Shutdown(drainCtx); err != nil {
		slog.Warn("Shutdown timed out with delayed actions pending", "error", err)
	}
}
