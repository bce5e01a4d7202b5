package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"geojobs/internal/models"
)

const (
	ParsedJobCacheTTL  = 1 * time.Minute
	SearchStateTTL     = 30 * time.Minute
	RateLimitWindowTTL = 1 * time.Minute

	// outlives any in-flight fill
	ParsedJobVersionTTL = 24 * time.Hour
)

func ParsedJobKey(rawID int64) string {
	return fmt.Sprintf("parsed_job:%d", rawID)
}

func ParsedJobVersionKey(rawID int64) string {
	return fmt.Sprintf("parsed_job_version:%d", rawID)
}

func SearchStateKey(userID int64) string {
	return fmt.Sprintf("search:user:%d", userID)
}

func RateLimitKey(userID int64) string {
	return fmt.Sprintf("ratelimit:user:%d", userID)
}

func DigestCursorKey() string {
	return "digest:cursor"
}

func DigestSubscribersKey() string {
	return "digest:subscribers"
}

func (c *Cache) GetParsedJob(ctx context.Context, rawID int64) (*models.ParsedJob, bool, error) {
	var job models.ParsedJob
	err := c.Get(ctx, ParsedJobKey(rawID), &job)
	if errors.Is(err, ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &job, true, nil
}

func (c *Cache) ParsedJobVersion(ctx context.Context, rawID int64) (int64, error) {
	return c.Version(ctx, ParsedJobVersionKey(rawID))
}

// SetParsedJob caches job unless the row was invalidated after version was
// read. A skipped fill is not an error.
func (c *Cache) SetParsedJob(ctx context.Context, job *models.ParsedJob, version int64) error {
	_, err := c.SetIfVersion(ctx, ParsedJobKey(job.RawID), job, c.jobTTL, ParsedJobVersionKey(job.RawID), version)
	return err
}

func (c *Cache) InvalidateParsedJob(ctx context.Context, rawID int64) error {
	return c.BumpVersion(ctx, ParsedJobKey(rawID), ParsedJobVersionKey(rawID), ParsedJobVersionTTL)
}

func (c *Cache) IncrementUserRateLimit(ctx context.Context, userID int64) (int64, error) {
	return c.IncrementWithExpiry(ctx, RateLimitKey(userID), RateLimitWindowTTL)
}

func (c *Cache) SetSearchState(ctx context.Context, userID int64, filter models.ScanFilter) error {
	return c.Set(ctx, SearchStateKey(userID), filter, SearchStateTTL)
}

// GetSearchState returns the last search of the user; ok is false when it
// expired or never existed.
func (c *Cache) GetSearchState(ctx context.Context, userID int64) (models.ScanFilter, bool, error) {
	var filter models.ScanFilter
	err := c.Get(ctx, SearchStateKey(userID), &filter)
	if errors.Is(err, ErrCacheMiss) {
		return filter, false, nil
	}
	if err != nil {
		return filter, false, err
	}
	return filter, true, nil
}

func (c *Cache) Subscribe(ctx context.Context, chatID int64) (bool, error) {
	return c.AddToSet(ctx, DigestSubscribersKey(), chatID)
}

func (c *Cache) Unsubscribe(ctx context.Context, chatID int64) (bool, error) {
	return c.RemoveFromSet(ctx, DigestSubscribersKey(), chatID)
}

func (c *Cache) IsSubscribed(ctx context.Context, chatID int64) (bool, error) {
	return c.IsMember(ctx, DigestSubscribersKey(), chatID)
}

func (c *Cache) Subscribers(ctx context.Context) ([]int64, error) {
	return c.Int64Members(ctx, DigestSubscribersKey())
}

func (c *Cache) DigestCursor(ctx context.Context) (int64, bool, error) {
	raw, err := c.GetString(ctx, DigestCursorKey())
	if errors.Is(err, ErrCacheMiss) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	cursor, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse digest cursor: %w", err)
	}
	return cursor, true, nil
}

func (c *Cache) SetDigestCursor(ctx context.Context, rawID int64) error {
	return c.SetInt(ctx, DigestCursorKey(), rawID)
}
