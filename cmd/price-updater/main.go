package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/maltedev/price-tracker/internal/browser"
	"github.com/maltedev/price-tracker/internal/config"
	"github.com/maltedev/price-tracker/internal/database"
	"github.com/maltedev/price-tracker/internal/events"
	"github.com/maltedev/price-tracker/internal/fetch"
	"github.com/maltedev/price-tracker/internal/parser"
	"github.com/maltedev/price-tracker/internal/ratelimit"
	"github.com/maltedev/price-tracker/internal/scraper"
	"github.com/maltedev/price-tracker/internal/updater"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: 5,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	b, err := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
	})
	if err != nil {
		logger.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	relay := database.NewStreamRelay(db, redisClient, logger, database.StreamRelayConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    100,
	})
	go func() {
		if err := relay.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("stream relay stopped with error", "error", err)
		}
	}()

	// Batch refreshes share one adaptive limiter so origin pushback slows
	// the whole run down.
	adaptive := ratelimit.NewAdaptiveRateLimiter(cfg.Scraper.RateLimitMin, cfg.Scraper.RateLimitMax)

	direct := fetch.NewDirectStrategy(fetch.DirectOptions{
		Timeout:      cfg.Scraper.DirectTimeout,
		MaxRetries:   cfg.Scraper.MaxRetries,
		RetryBackoff: cfg.Scraper.RetryDelay,
		UserAgents:   cfg.Scraper.UserAgents,
	}, adaptive, logger)

	relayOpts := fetch.DefaultRelayOptions()
	relayOpts.Timeout = cfg.Relay.Timeout
	relayOpts.RetryBackoff = cfg.Relay.RetryBackoff
	relayStrategy := fetch.NewRelayStrategy(relayOpts, adaptive, logger)

	rendered := fetch.NewRenderedStrategy(b, fetch.RenderedOptions{
		NavRetries: cfg.Browser.NavRetries,
	}, adaptive, logger)

	chain := fetch.NewChain([]fetch.Strategy{direct, relayStrategy, rendered}, fetch.ChainOptions{
		MinBodyBytes:   cfg.Scraper.MinBodyBytes,
		OverallTimeout: cfg.Scraper.OverallTimeout,
	}, logger)

	scrapeService := scraper.New(chain, parser.NewExtractor(logger), logger)
	publisher := events.NewPublisher(db, logger)
	ingestor := updater.NewIngestor(db, publisher, logger)

	u := updater.New(db, scrapeService, ingestor, adaptive, updater.Options{
		BatchSize: cfg.Updater.BatchSize,
	}, logger)

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Updater.Schedule, func() {
		if _, err := u.RunOnce(ctx); err != nil && err != context.Canceled {
			logger.Error("refresh run failed", "error", err)
		}
	})
	if err != nil {
		logger.Error("invalid updater schedule", "schedule", cfg.Updater.Schedule, "error", err)
		os.Exit(1)
	}

	scheduler.Start()
	logger.Info("price updater started", "schedule", cfg.Updater.Schedule, "batch_size", cfg.Updater.BatchSize)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down price updater...")
	cancel()

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("timed out waiting for running jobs")
	}

	logger.Info("price updater stopped")
}
