package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned by Get and GetString for absent keys.
var ErrCacheMiss = errors.New("key not found")

// errStaleVersion aborts a guarded write whose version moved on.
var errStaleVersion = errors.New("version changed")

// Cache represents redis client
type Cache struct {
	client *redis.Client
	jobTTL time.Duration
	logger *zap.Logger
}

func New(addr, password string, db int, logger *zap.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	// check connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("successfully connected to Redis")

	return &Cache{
		client: client,
		jobTTL: ParsedJobCacheTTL,
		logger: logger,
	}, nil
}

// WithParsedJobTTL sets how long cached rows live.
func (c *Cache) WithParsedJobTTL(ttl time.Duration) *Cache {
	if ttl > 0 {
		c.jobTTL = ttl
	}
	return c
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Set saves value to Redis with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	err = c.client.Set(ctx, key, data, ttl).Err()
	if err != nil {
		c.logger.Error("failed to set cache",
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("set cache: %w", err)
	}

	return nil
}

func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		c.logger.Error("failed to get cache",
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("get cache: %w", err)
	}

	err = json.Unmarshal(data, dest)
	if err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}

	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.client.Del(ctx, key).Err()
	if err != nil {
		c.logger.Error("failed to delete cache",
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("delete cache: %w", err)
	}

	return nil
}

func (c *Cache) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	err := c.client.Set(ctx, key, value, ttl).Err()
	if err != nil {
		c.logger.Error("failed to set string",
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("set string: %w", err)
	}

	return nil
}

func (c *Cache) GetString(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrCacheMiss
	}
	if err != nil {
		c.logger.Error("failed to get string",
			zap.String("key", key),
			zap.Error(err),
		)
		return "", fmt.Errorf("get string: %w", err)
	}

	return value, nil
}

// Version reads a counter kept by BumpVersion; absent counters read as 0.
func (c *Cache) Version(ctx context.Context, versionKey string) (int64, error) {
	v, err := c.client.Get(ctx, versionKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		c.logger.Error("failed to get version",
			zap.String("key", versionKey),
			zap.Error(err),
		)
		return 0, fmt.Errorf("get version: %w", err)
	}
	return v, nil
}

// SetIfVersion saves value only while versionKey still holds version. It
// reports false when the version moved on, including a concurrent bump.
func (c *Cache) SetIfVersion(ctx context.Context, key string, value interface{}, ttl time.Duration, versionKey string, version int64) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to marshal value: %w", err)
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != version {
			return errStaleVersion
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}, versionKey)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errStaleVersion), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		c.logger.Error("failed to set versioned cache",
			zap.String("key", key),
			zap.Error(err),
		)
		return false, fmt.Errorf("set versioned cache: %w", err)
	}
}

// BumpVersion deletes key and advances versionKey in one transaction, so
// fills that read the old version are rejected by SetIfVersion.
func (c *Cache) BumpVersion(ctx context.Context, key, versionKey string, versionTTL time.Duration) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		pipe.Expire(ctx, versionKey, versionTTL)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		c.logger.Error("failed to bump version",
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("bump version: %w", err)
	}

	return nil
}

// IncrementWithExpiry increments counter and sets TTL if the key is new
func (c *Cache) IncrementWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := c.client.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)

	_, err := pipe.Exec(ctx)
	if err != nil {
		c.logger.Error("failed to increment with expiry",
			zap.String("key", key),
			zap.Error(err),
		)
		return 0, fmt.Errorf("increment with expiry: %w", err)
	}

	return incrCmd.Val(), nil
}

func (c *Cache) SetInt(ctx context.Context, key string, value int64) error {
	return c.SetString(ctx, key, strconv.FormatInt(value, 10), 0)
}

func (c *Cache) AddToSet(ctx context.Context, key string, members ...interface{}) (bool, error) {
	added, err := c.client.SAdd(ctx, key, members...).Result()
	if err != nil {
		c.logger.Error("failed to add to set",
			zap.String("key", key),
			zap.Error(err),
		)
		return false, fmt.Errorf("add to set: %w", err)
	}

	return added > 0, nil
}

func (c *Cache) RemoveFromSet(ctx context.Context, key string, members ...interface{}) (bool, error) {
	removed, err := c.client.SRem(ctx, key, members...).Result()
	if err != nil {
		c.logger.Error("failed to remove from set",
			zap.String("key", key),
			zap.Error(err),
		)
		return false, fmt.Errorf("remove from set: %w", err)
	}

	return removed > 0, nil
}

func (c *Cache) IsMember(ctx context.Context, key string, member interface{}) (bool, error) {
	ok, err := c.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		c.logger.Error("failed to check set membership",
			zap.String("key", key),
			zap.Error(err),
		)
		return false, fmt.Errorf("is member: %w", err)
	}

	return ok, nil
}

func (c *Cache) Int64Members(ctx context.Context, key string) ([]int64, error) {
	raw, err := c.client.SMembers(ctx, key).Result()
	if err != nil {
		c.logger.Error("failed to list set members",
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, fmt.Errorf("members: %w", err)
	}

	return parseInt64s(raw)
}

func parseInt64s(raw []string) ([]int64, error) {
	out := make([]int64, 0, len(raw))
	for _, s := range raw {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse set member %q: %w", s, err)
		}
		out = append(out, n)
	}
	return out, nil
}
