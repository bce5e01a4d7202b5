package memory

import (
	"context"
	"testing"

	apperrors "geojobs/internal/errors"
	"geojobs/internal/models"
	"geojobs/internal/storage"
	"geojobs/internal/storage/storagetest"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Repository {
		return New()
	})
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Insert(ctx, &models.ParsedJob{
		RawID:       1,
		IsCandidate: models.Bool(true),
		IsEmployer:  models.Bool(false),
		Skills:      pq.StringArray{"Go"},
	}))

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	got.Skills[0] = "mutated"

	again, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, pq.StringArray{"Go"}, again.Skills)
}

func TestInsertKeepsCallerSlice(t *testing.T) {
	ctx := context.Background()
	s := New()

	skills := pq.StringArray{"Go"}
	require.NoError(t, s.Insert(ctx, &models.ParsedJob{RawID: 2, IsCandidate: models.Bool(true), IsEmployer: models.Bool(true), Skills: skills}))
	skills[0] = "changed after write"

	got, err := s.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Go", got.Skills[0])
}

func TestInsertKeepsCallerPointers(t *testing.T) {
	ctx := context.Background()
	s := New()

	city := "Тюмень"
	job := &models.ParsedJob{RawID: 3, IsCandidate: models.Bool(true), IsEmployer: models.Bool(false), City: &city}
	require.NoError(t, s.Insert(ctx, job))

	city = "changed after write"
	*job.IsCandidate = false

	got, err := s.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Тюмень", *got.City)
	assert.True(t, *got.IsCandidate)
}

func TestGetResultPointersAreOwned(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Upsert(ctx, &models.ParsedJob{
		RawID:       4,
		IsCandidate: models.Bool(false),
		IsEmployer:  models.Bool(true),
		City:        models.String("Надым"),
	}))

	got, err := s.Get(ctx, 4)
	require.NoError(t, err)
	*got.City = "changed via result"
	*got.IsEmployer = false

	scanned, err := s.Scan(ctx, models.ScanFilter{})
	require.NoError(t, err)
	require.Len(t, scanned, 1)
	*scanned[0].City = "changed via scan"

	again, err := s.Get(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "Надым", *again.City)
	assert.True(t, *again.IsEmployer)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New()
	err := s.Upsert(ctx, &models.ParsedJob{RawID: 1, IsCandidate: models.Bool(true), IsEmployer: models.Bool(true)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.Len())

	_, err = s.Get(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidationBeforeContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New().Insert(ctx, &models.ParsedJob{RawID: 1})
	assert.True(t, apperrors.IsMissingField(err))
}
