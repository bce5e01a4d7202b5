package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"geojobs/internal/bot"
	"geojobs/internal/bot/scheduler"
	"geojobs/internal/config"
	"geojobs/internal/logger"
	"geojobs/internal/storage"
	"geojobs/internal/storage/postgres"
	"geojobs/internal/storage/postgres/migrations"
	"geojobs/internal/storage/redis"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.ValidateBot(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting parsed jobs bot",
		zap.String("log_level", cfg.LogLevel),
		zap.String("digest_schedule", cfg.DigestSchedule),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("connecting to PostgreSQL...")
	store, err := postgres.New(cfg.PostgresDSN, postgres.PoolConfig{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, log)
	if err != nil {
		log.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer store.Close()

	log.Info("PostgreSQL connected successfully")

	if cfg.AutoMigrate {
		migrator, err := postgres.NewMigrator(store, migrations.All(), log)
		if err != nil {
			log.Fatal("failed to create migrator", zap.Error(err))
		}
		applied, err := migrator.Up(ctx)
		if err != nil {
			log.Fatal("failed to apply migrations", zap.Error(err))
		}
		log.Info("migrations applied", zap.Int("count", applied))
	}

	log.Info("connecting to Redis...")
	cache, err := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	if err != nil {
		log.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer cache.Close()

	cache.WithParsedJobTTL(cfg.CacheTTL)

	log.Info("Redis connected successfully")

	repo := storage.NewCached(store, cache, log)

	log.Info("initializing Telegram bot...")
	tgBot, err := bot.New(cfg, repo, cache, log)
	if err != nil {
		log.Fatal("failed to create bot", zap.Error(err))
	}

	log.Info("Telegram bot initialized successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	digest := scheduler.New(
		cfg.DigestSchedule,
		cfg.MaxJobsPerDigest,
		tgBot.Sender(),
		repo,
		cache,
		log,
	)

	digestDone := make(chan struct{})
	go func() {
		defer close(digestDone)
		if err := digest.Start(ctx); err != nil {
			log.Error("digest scheduler failed", zap.Error(err))
		}
	}()

	log.Info("bot is running...")
	log.Info("press Ctrl+C to stop")

	if err := tgBot.Start(ctx); err != nil {
		log.Error("bot stopped with error", zap.Error(err))
	}

	log.Info("shutting down gracefully...")
	<-digestDone

	log.Info("bot stopped")
}
