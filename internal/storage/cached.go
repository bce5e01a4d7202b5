package storage

import (
	"context"

	"geojobs/internal/models"

	"go.uber.org/zap"
)

// JobCache holds single rows by raw_id. Every invalidation advances the
// row's version; SetParsedJob drops a fill whose version is no longer
// current.
type JobCache interface {
	GetParsedJob(ctx context.Context, rawID int64) (*models.ParsedJob, bool, error)
	ParsedJobVersion(ctx context.Context, rawID int64) (int64, error)
	SetParsedJob(ctx context.Context, job *models.ParsedJob, version int64) error
	InvalidateParsedJob(ctx context.Context, rawID int64) error
}

// Cached serves Get from a JobCache and drops the cached row after every
// successful write. Cache failures are logged and never fail the call.
type Cached struct {
	repo   Repository
	cache  JobCache
	logger *zap.Logger
}

var _ Repository = (*Cached)(nil)

func NewCached(repo Repository, cache JobCache, logger *zap.Logger) *Cached {
	return &Cached{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

func (c *Cached) Insert(ctx context.Context, job *models.ParsedJob) error {
	if err := c.repo.Insert(ctx, job); err != nil {
		return err
	}
	c.invalidate(ctx, job.RawID)
	return nil
}

func (c *Cached) Upsert(ctx context.Context, job *models.ParsedJob) error {
	if err := c.repo.Upsert(ctx, job); err != nil {
		return err
	}
	c.invalidate(ctx, job.RawID)
	return nil
}

func (c *Cached) Get(ctx context.Context, rawID int64) (*models.ParsedJob, error) {
	job, ok, err := c.cache.GetParsedJob(ctx, rawID)
	if err != nil {
		c.logger.Warn("parsed job cache read failed",
			zap.Int64("raw_id", rawID),
			zap.Error(err),
		)
	}
	if ok {
		out := job.Normalized()
		return &out, nil
	}

	// read before the lookup so a write landing in between rejects the fill
	version, verr := c.cache.ParsedJobVersion(ctx, rawID)
	if verr != nil {
		c.logger.Warn("parsed job cache version read failed",
			zap.Int64("raw_id", rawID),
			zap.Error(verr),
		)
	}

	job, err = c.repo.Get(ctx, rawID)
	if err != nil {
		return nil, err
	}

	if verr == nil {
		if err := c.cache.SetParsedJob(ctx, job, version); err != nil {
			c.logger.Warn("parsed job cache fill failed",
				zap.Int64("raw_id", rawID),
				zap.Error(err),
			)
		}
	}

	return job, nil
}

func (c *Cached) Scan(ctx context.Context, filter models.ScanFilter) ([]models.ParsedJob, error) {
	return c.repo.Scan(ctx, filter)
}

func (c *Cached) Count(ctx context.Context, filter models.ScanFilter) (int64, error) {
	return c.repo.Count(ctx, filter)
}

func (c *Cached) Delete(ctx context.Context, rawID int64) error {
	if err := c.repo.Delete(ctx, rawID); err != nil {
		return err
	}
	c.invalidate(ctx, rawID)
	return nil
}

func (c *Cached) MaxRawID(ctx context.Context) (int64, error) {
	return c.repo.MaxRawID(ctx)
}

func (c *Cached) invalidate(ctx context.Context, rawID int64) {
	if err := c.cache.InvalidateParsedJob(ctx, rawID); err != nil {
		c.logger.Warn("parsed job cache invalidation failed",
			zap.Int64("raw_id", rawID),
			zap.Error(err),
		)
	}
}
