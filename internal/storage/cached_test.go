package storage_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	apperrors "geojobs/internal/errors"
	"geojobs/internal/models"
	"geojobs/internal/storage"
	"geojobs/internal/storage/memory"
	"geojobs/internal/storage/storagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeCache struct {
	mu          sync.Mutex
	rows        map[int64]models.ParsedJob
	versions    map[int64]int64
	gets        int
	hits        int
	invalidated []int64
	failWith    error
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		rows:     make(map[int64]models.ParsedJob),
		versions: make(map[int64]int64),
	}
}

func (c *fakeCache) GetParsedJob(_ context.Context, rawID int64) (*models.ParsedJob, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.failWith != nil {
		return nil, false, c.failWith
	}
	job, ok := c.rows[rawID]
	if !ok {
		return nil, false, nil
	}
	c.hits++
	return &job, true, nil
}

func (c *fakeCache) ParsedJobVersion(_ context.Context, rawID int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return 0, c.failWith
	}
	return c.versions[rawID], nil
}

func (c *fakeCache) SetParsedJob(_ context.Context, job *models.ParsedJob, version int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	if c.versions[job.RawID] != version {
		return nil
	}
	c.rows[job.RawID] = job.Normalized()
	return nil
}

func (c *fakeCache) InvalidateParsedJob(_ context.Context, rawID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, rawID)
	if c.failWith != nil {
		return c.failWith
	}
	c.versions[rawID]++
	delete(c.rows, rawID)
	return nil
}

// racingRepo runs a write between the lookup and the cache fill of Get.
type racingRepo struct {
	storage.Repository
	during func()
}

func (r *racingRepo) Get(ctx context.Context, rawID int64) (*models.ParsedJob, error) {
	job, err := r.Repository.Get(ctx, rawID)
	if r.during != nil {
		during := r.during
		r.during = nil
		during()
	}
	return job, err
}

func TestCachedContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Repository {
		return storage.NewCached(memory.New(), newFakeCache(), zap.NewNop())
	})
}

func TestCachedGetFillsOnMiss(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	repo := storage.NewCached(memory.New(), cache, zap.NewNop())

	require.NoError(t, repo.Insert(ctx, &models.ParsedJob{
		RawID:       5,
		IsCandidate: models.Bool(false),
		IsEmployer:  models.Bool(true),
		City:        models.String("Тюмень"),
	}))

	_, err := repo.Get(ctx, 5)
	require.NoError(t, err)
	got, err := repo.Get(ctx, 5)
	require.NoError(t, err)

	assert.Equal(t, 2, cache.gets)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, "Тюмень", *got.City)
}

func TestCachedWritesInvalidate(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	repo := storage.NewCached(memory.New(), cache, zap.NewNop())

	job := &models.ParsedJob{RawID: 6, IsCandidate: models.Bool(false), IsEmployer: models.Bool(true), City: models.String("Сургут")}
	require.NoError(t, repo.Insert(ctx, job))
	_, err := repo.Get(ctx, 6)
	require.NoError(t, err)

	job.City = models.String("Надым")
	require.NoError(t, repo.Upsert(ctx, job))

	got, err := repo.Get(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, "Надым", *got.City, "stale cached row must not be served")

	require.NoError(t, repo.Delete(ctx, 6))
	_, err = repo.Get(ctx, 6)
	assert.True(t, apperrors.IsNotFound(err))

	assert.Equal(t, []int64{6, 6, 6}, cache.invalidated)
}

func TestCachedFailedWriteKeepsCache(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	repo := storage.NewCached(memory.New(), cache, zap.NewNop())

	job := &models.ParsedJob{RawID: 7, IsCandidate: models.Bool(true), IsEmployer: models.Bool(false)}
	require.NoError(t, repo.Insert(ctx, job))

	err := repo.Insert(ctx, job)
	assert.True(t, apperrors.IsDuplicateKey(err))
	assert.Equal(t, []int64{7}, cache.invalidated)
}

func TestCachedSurvivesCacheOutage(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	cache := newFakeCache()
	cache.failWith = errors.New("connection refused")
	repo := storage.NewCached(memory.New(), cache, zap.New(core))

	require.NoError(t, repo.Upsert(ctx, &models.ParsedJob{RawID: 8, IsCandidate: models.Bool(true), IsEmployer: models.Bool(true)}))

	got, err := repo.Get(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.RawID)

	assert.Equal(t, 1, logs.FilterMessage("parsed job cache invalidation failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("parsed job cache read failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("parsed job cache version read failed").Len())
	assert.Zero(t, logs.FilterMessage("parsed job cache fill failed").Len())
}

func TestCachedWriteDuringFillIsNotCached(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	store := memory.New()

	require.NoError(t, store.Insert(ctx, &models.ParsedJob{
		RawID:       9,
		IsCandidate: models.Bool(false),
		IsEmployer:  models.Bool(true),
		City:        models.String("old"),
	}))

	// a second process writes through its own decorator over the same cache
	writer := storage.NewCached(store, cache, zap.NewNop())
	reader := storage.NewCached(&racingRepo{
		Repository: store,
		during: func() {
			require.NoError(t, writer.Upsert(ctx, &models.ParsedJob{
				RawID:       9,
				IsCandidate: models.Bool(false),
				IsEmployer:  models.Bool(true),
				City:        models.String("new"),
			}))
		},
	}, cache, zap.NewNop())

	first, err := reader.Get(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "old", *first.City)

	again, err := reader.Get(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "new", *again.City)
	assert.Zero(t, cache.hits)

	// the next fill goes through and is served from the cache
	_, err = reader.Get(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
}
