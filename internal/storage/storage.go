// Package storage defines the parsed job repository contract shared by the
// Postgres store, the in-memory store and the cache decorator.
package storage

import (
	"context"

	apperrors "geojobs/internal/errors"
	"geojobs/internal/models"
)

// Repository stores one ParsedJob per raw item.
//
// Insert fails with a DUPLICATE_KEY domain error when raw_id exists. Upsert
// replaces the whole row atomically. Get and Delete fail with NOT_FOUND for
// an unknown raw_id. Writes missing raw_id or either role flag fail with
// MISSING_REQUIRED_FIELD before touching storage.
type Repository interface {
	Insert(ctx context.Context, job *models.ParsedJob) error
	Upsert(ctx context.Context, job *models.ParsedJob) error
	Get(ctx context.Context, rawID int64) (*models.ParsedJob, error)
	Scan(ctx context.Context, filter models.ScanFilter) ([]models.ParsedJob, error)
	Count(ctx context.Context, filter models.ScanFilter) (int64, error)
	Delete(ctx context.Context, rawID int64) error
	// MaxRawID is the highest stored raw_id, 0 when empty.
	MaxRawID(ctx context.Context) (int64, error)
}

// PrepareWrite validates job and returns the normalized row to persist.
func PrepareWrite(job *models.ParsedJob) (models.ParsedJob, error) {
	if job == nil {
		return models.ParsedJob{}, apperrors.MissingField("raw_id", "is_candidate", "is_employer")
	}
	if err := job.Validate(); err != nil {
		return models.ParsedJob{}, err
	}
	return job.Normalized(), nil
}
