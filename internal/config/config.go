package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	// Telegram
	TelegramToken string

	// Database
	PostgresDSN     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool

	// Cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Bot settings
	DigestSchedule   string
	MaxJobsPerDigest int
	SearchPageSize   int

	// Logging
	LogLevel string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first without overriding set variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Defaults
		MaxOpenConns:     25,
		MaxIdleConns:     5,
		ConnMaxLifetime:  5 * time.Minute,
		RedisAddr:        "localhost:6379",
		RedisDB:          0,
		CacheTTL:         1 * time.Minute,
		DigestSchedule:   "@every 5m",
		MaxJobsPerDigest: 10,
		SearchPageSize:   5,
		LogLevel:         "info",
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")

	cfg.PostgresDSN = os.Getenv("POSTGRES_DSN")
	if cfg.PostgresDSN == "" {
		cfg.PostgresDSN = os.Getenv("DATABASE_URL")
	}
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN or DATABASE_URL is required")
	}

	var err error
	if cfg.MaxOpenConns, err = intEnv("DB_MAX_OPEN_CONNS", cfg.MaxOpenConns); err != nil {
		return nil, err
	}
	if cfg.MaxIdleConns, err = intEnv("DB_MAX_IDLE_CONNS", cfg.MaxIdleConns); err != nil {
		return nil, err
	}
	if cfg.ConnMaxLifetime, err = durationEnv("DB_CONN_MAX_LIFETIME", cfg.ConnMaxLifetime); err != nil {
		return nil, err
	}

	if autoMigrate := os.Getenv("AUTO_MIGRATE"); autoMigrate != "" {
		b, err := strconv.ParseBool(autoMigrate)
		if err != nil {
			return nil, fmt.Errorf("invalid AUTO_MIGRATE: %w", err)
		}
		cfg.AutoMigrate = b
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.RedisAddr = addr
	}

	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if cfg.RedisDB, err = intEnv("REDIS_DB", cfg.RedisDB); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = durationEnv("CACHE_TTL", cfg.CacheTTL); err != nil {
		return nil, err
	}

	if schedule := os.Getenv("DIGEST_SCHEDULE"); schedule != "" {
		cfg.DigestSchedule = schedule
	}

	if cfg.MaxJobsPerDigest, err = intEnv("MAX_JOBS_PER_DIGEST", cfg.MaxJobsPerDigest); err != nil {
		return nil, err
	}
	if cfg.SearchPageSize, err = intEnv("SEARCH_PAGE_SIZE", cfg.SearchPageSize); err != nil {
		return nil, err
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres DSN is empty")
	}

	if c.MaxOpenConns < 1 {
		return fmt.Errorf("max open connections must be positive")
	}

	if c.MaxIdleConns < 0 || c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("max idle connections must be between 0 and %d", c.MaxOpenConns)
	}

	if c.CacheTTL < time.Second {
		return fmt.Errorf("cache ttl too small: %v", c.CacheTTL)
	}

	if c.MaxJobsPerDigest < 1 || c.MaxJobsPerDigest > 50 {
		return fmt.Errorf("max jobs per digest must be between 1 and 50")
	}

	if c.SearchPageSize < 1 || c.SearchPageSize > 20 {
		return fmt.Errorf("search page size must be between 1 and 20")
	}

	if _, err := cron.ParseStandard(c.DigestSchedule); err != nil {
		return fmt.Errorf("invalid digest schedule %q: %w", c.DigestSchedule, err)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	return nil
}

// ValidateBot checks the settings only the Telegram bot needs.
func (c *Config) ValidateBot() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.TelegramToken == "" {
		return fmt.Errorf("telegram token is empty")
	}

	return nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
