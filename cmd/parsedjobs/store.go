package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"geojobs/internal/config"
	"geojobs/internal/logger"
	"geojobs/internal/storage"
	"geojobs/internal/storage/postgres"
	"geojobs/internal/storage/redis"

	"go.uber.org/zap"
)

type session struct {
	store *postgres.Store
	cache *redis.Cache
	// repo writes through the bot's row cache when Redis is reachable
	repo storage.Repository
	log  *zap.Logger
}

func (s *session) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
	s.store.Close()
	_ = s.log.Sync()
}

// openStore connects to Postgres and, when reachable, to the Redis row cache
// using the environment configuration.
func openStore() (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	store, err := postgres.New(cfg.PostgresDSN, postgres.PoolConfig{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, log)
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sess := &session{store: store, repo: store, log: log}

	cache, err := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	if err != nil {
		log.Warn("redis unavailable, cached rows expire by TTL only", zap.Error(err))
		return sess, nil
	}
	sess.cache = cache.WithParsedJobTTL(cfg.CacheTTL)
	sess.repo = storage.NewCached(store, sess.cache, log)

	return sess, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return nil
}

func parseRawID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid raw_id %q: must be a positive integer", arg)
	}
	return id, nil
}
