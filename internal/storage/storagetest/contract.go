// Package storagetest holds the behaviour every storage.Repository must show.
package storagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "geojobs/internal/errors"
	"geojobs/internal/models"
	"geojobs/internal/storage"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty repository for one subtest.
type Factory func(t *testing.T) storage.Repository

// Run exercises repo against the parsed_jobs contract.
func Run(t *testing.T, newRepo Factory) {
	t.Run("InsertThenGet", func(t *testing.T) { testInsertThenGet(t, newRepo(t)) })
	t.Run("MinimalRow", func(t *testing.T) { testMinimalRow(t, newRepo(t)) })
	t.Run("DuplicateInsert", func(t *testing.T) { testDuplicateInsert(t, newRepo(t)) })
	t.Run("UpsertReplaces", func(t *testing.T) { testUpsertReplaces(t, newRepo(t)) })
	t.Run("ConcurrentUpsert", func(t *testing.T) { testConcurrentUpsert(t, newRepo(t)) })
	t.Run("FlagCombinations", func(t *testing.T) { testFlagCombinations(t, newRepo(t)) })
	t.Run("MissingRequired", func(t *testing.T) { testMissingRequired(t, newRepo(t)) })
	t.Run("GetUnknown", func(t *testing.T) { testGetUnknown(t, newRepo(t)) })
	t.Run("FullRoundTrip", func(t *testing.T) { testFullRoundTrip(t, newRepo(t)) })
	t.Run("ScanAndCount", func(t *testing.T) { testScanAndCount(t, newRepo(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newRepo(t)) })
	t.Run("MaxRawID", func(t *testing.T) { testMaxRawID(t, newRepo(t)) })
}

func testInsertThenGet(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	err := repo.Insert(ctx, &models.ParsedJob{
		RawID:         42,
		IsCandidate:   models.Bool(true),
		IsEmployer:    models.Bool(false),
		PositionTitle: models.String("Backend Engineer"),
		Skills:        pq.StringArray{"Go", "SQL"},
	})
	require.NoError(t, err)

	got, err := repo.Get(ctx, 42)
	require.NoError(t, err)

	assert.Equal(t, int64(42), got.RawID)
	assert.True(t, got.Candidate())
	assert.False(t, got.Employer())
	require.NotNil(t, got.PositionTitle)
	assert.Equal(t, "Backend Engineer", *got.PositionTitle)
	assert.Equal(t, pq.StringArray{"Go", "SQL"}, got.Skills)
	assert.NotNil(t, got.Equipment)
	assert.Empty(t, got.Equipment)
	assert.NotNil(t, got.Software)
	assert.Empty(t, got.Software)
	assert.JSONEq(t, `{}`, string(got.Contacts))

	assert.Nil(t, got.City)
	assert.Nil(t, got.Country)
	assert.Nil(t, got.SalaryFrom)
	assert.Nil(t, got.Confidence)
	assert.Nil(t, got.PublishedAt)
	assert.Nil(t, got.Attachments)
}

func testMinimalRow(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &models.ParsedJob{
		RawID:       7,
		IsCandidate: models.Bool(true),
		IsEmployer:  models.Bool(false),
	}))

	got, err := repo.Get(ctx, 7)
	require.NoError(t, err)
	assert.NotNil(t, got.Skills)
	assert.Empty(t, got.Skills)
	assert.JSONEq(t, `{}`, string(got.Contacts))
}

func testDuplicateInsert(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	job := &models.ParsedJob{RawID: 5, IsCandidate: models.Bool(false), IsEmployer: models.Bool(true)}

	require.NoError(t, repo.Insert(ctx, job))

	err := repo.Insert(ctx, job)
	require.Error(t, err)
	assert.True(t, apperrors.IsDuplicateKey(err), "got %v", err)

	n, err := repo.Count(ctx, models.ScanFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func testUpsertReplaces(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &models.ParsedJob{
		RawID:       11,
		IsCandidate: models.Bool(false),
		IsEmployer:  models.Bool(true),
		City:        models.String("Казань"),
		Skills:      pq.StringArray{"GNSS"},
	}))

	require.NoError(t, repo.Upsert(ctx, &models.ParsedJob{
		RawID:         11,
		IsCandidate:   models.Bool(true),
		IsEmployer:    models.Bool(false),
		PositionTitle: models.String("Инженер-геодезист"),
	}))

	got, err := repo.Get(ctx, 11)
	require.NoError(t, err)
	assert.True(t, got.Candidate())
	assert.False(t, got.Employer())
	require.NotNil(t, got.PositionTitle)
	assert.Equal(t, "Инженер-геодезист", *got.PositionTitle)
	assert.Nil(t, got.City, "replaced row keeps no stale attributes")
	assert.Empty(t, got.Skills)

	n, err := repo.Count(ctx, models.ScanFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func testConcurrentUpsert(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	titles := []string{"A", "B", "C", "D", "E", "F", "G", "H"}

	var wg sync.WaitGroup
	errs := make(chan error, len(titles))
	for _, title := range titles {
		wg.Add(1)
		go func(title string) {
			defer wg.Done()
			errs <- repo.Upsert(ctx, &models.ParsedJob{
				RawID:         99,
				IsCandidate:   models.Bool(false),
				IsEmployer:    models.Bool(true),
				PositionTitle: models.String(title),
				Skills:        pq.StringArray{title},
			})
		}(title)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	n, err := repo.Count(ctx, models.ScanFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.Get(ctx, 99)
	require.NoError(t, err)
	require.NotNil(t, got.PositionTitle)
	// whichever write won, the row is one write's values, never a mix
	assert.Equal(t, pq.StringArray{*got.PositionTitle}, got.Skills)
}

func testFlagCombinations(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	combos := [][2]bool{{false, false}, {false, true}, {true, false}, {true, true}}

	for i, c := range combos {
		rawID := int64(100 + i)
		require.NoError(t, repo.Insert(ctx, &models.ParsedJob{
			RawID:       rawID,
			IsCandidate: models.Bool(c[0]),
			IsEmployer:  models.Bool(c[1]),
		}))

		got, err := repo.Get(ctx, rawID)
		require.NoError(t, err)
		assert.Equal(t, c[0], got.Candidate())
		assert.Equal(t, c[1], got.Employer())
	}
}

func testMissingRequired(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	cases := []*models.ParsedJob{
		nil,
		{IsCandidate: models.Bool(true), IsEmployer: models.Bool(true)},
		{RawID: 3, IsEmployer: models.Bool(true)},
		{RawID: 3, IsCandidate: models.Bool(true)},
	}

	for _, job := range cases {
		err := repo.Insert(ctx, job)
		assert.True(t, apperrors.IsMissingField(err), "insert: %v", err)

		err = repo.Upsert(ctx, job)
		assert.True(t, apperrors.IsMissingField(err), "upsert: %v", err)
	}

	n, err := repo.Count(ctx, models.ScanFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testGetUnknown(t *testing.T, repo storage.Repository) {
	_, err := repo.Get(context.Background(), 9999)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err), "got %v", err)
}

func testFullRoundTrip(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	published := time.Date(2025, 4, 2, 8, 30, 0, 0, time.UTC)
	fetched := published.Add(5 * time.Minute)

	in := &models.ParsedJob{
		RawID:           501,
		IsCandidate:     models.Bool(false),
		IsEmployer:      models.Bool(true),
		PositionTitle:   models.String("Геодезист"),
		City:            models.String("Сургут"),
		Country:         models.String("Россия"),
		WorkFormat:      models.String("вахта"),
		ExperienceYears: models.Float(3),
		SalaryFrom:      models.Float(150000),
		SalaryTo:        models.Float(200000),
		SalaryCurrency:  models.String("RUB"),
		SalaryPeriod:    models.String("month"),
		Skills:          pq.StringArray{"GNSS", "нивелирование"},
		Equipment:       pq.StringArray{"Leica TS16"},
		Software:        pq.StringArray{"Credo", "AutoCAD"},
		Education:       models.String("высшее"),
		Contacts:        models.RawJSON(`{"phone":"+79001234567","telegram":"@boss"}`),
		SourceText:      models.String("Требуется геодезист на вахту"),
		Confidence:      models.Float(1.7),
		SourceID:        models.String("tg:-100123"),
		ExternalID:      models.String("8812"),
		Author:          models.String("@boss"),
		URL:             models.String("https://t.me/c/123/8812"),
		PublishedAt:     &published,
		FetchedAt:       &fetched,
		Attachments:     models.RawJSON(`[{"kind":"photo","file_id":"abc"}]`),
	}
	require.NoError(t, repo.Insert(ctx, in))

	got, err := repo.Get(ctx, 501)
	require.NoError(t, err)

	assert.Equal(t, *in.City, *got.City)
	assert.Equal(t, *in.WorkFormat, *got.WorkFormat)
	assert.InDelta(t, 3, *got.ExperienceYears, 1e-9)
	assert.InDelta(t, 150000, *got.SalaryFrom, 1e-9)
	assert.InDelta(t, 200000, *got.SalaryTo, 1e-9)
	assert.InDelta(t, 1.7, *got.Confidence, 1e-9, "confidence is stored unclamped")
	assert.Equal(t, in.Skills, got.Skills)
	assert.Equal(t, in.Equipment, got.Equipment)
	assert.Equal(t, in.Software, got.Software)
	assert.JSONEq(t, string(in.Contacts), string(got.Contacts))
	assert.JSONEq(t, string(in.Attachments), string(got.Attachments))
	assert.Equal(t, *in.ExternalID, *got.ExternalID)
	assert.Equal(t, *in.URL, *got.URL)
	assert.True(t, published.Equal(*got.PublishedAt))
	assert.True(t, fetched.Equal(*got.FetchedAt))
}

func testScanAndCount(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	rows := []*models.ParsedJob{
		{RawID: 1, IsCandidate: models.Bool(false), IsEmployer: models.Bool(true), Country: models.String("Россия"), Skills: pq.StringArray{"GNSS"}, SalaryFrom: models.Float(100000), SalaryTo: models.Float(150000)},
		{RawID: 2, IsCandidate: models.Bool(true), IsEmployer: models.Bool(false), Country: models.String("Казахстан"), Skills: pq.StringArray{"GNSS", "AutoCAD"}},
		{RawID: 3, IsCandidate: models.Bool(false), IsEmployer: models.Bool(true), Country: models.String("россия"), Skills: pq.StringArray{"AutoCAD"}, SalaryFrom: models.Float(200000)},
		{RawID: 4, IsCandidate: models.Bool(false), IsEmployer: models.Bool(true), Country: models.String("Россия")},
	}
	for _, r := range rows {
		require.NoError(t, repo.Insert(ctx, r))
	}

	ids := func(jobs []models.ParsedJob) []int64 {
		out := make([]int64, 0, len(jobs))
		for _, j := range jobs {
			out = append(out, j.RawID)
		}
		return out
	}

	all, err := repo.Scan(ctx, models.ScanFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4}, ids(all))
	for _, j := range all {
		assert.NotNil(t, j.Skills)
		assert.NotEmpty(t, j.Contacts)
	}

	russia, err := repo.Scan(ctx, models.ScanFilter{Country: "РОССИЯ"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4}, ids(russia))

	gnss, err := repo.Scan(ctx, models.ScanFilter{Skill: "GNSS"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(gnss))

	rich, err := repo.Scan(ctx, models.ScanFilter{SalaryAtLeast: models.Float(140000)})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids(rich))

	cheap, err := repo.Scan(ctx, models.ScanFilter{SalaryAtMost: models.Float(120000)})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(cheap))

	page, err := repo.Scan(ctx, models.ScanFilter{IsEmployer: models.Bool(true), AfterRawID: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids(page))

	employers, err := repo.Count(ctx, models.ScanFilter{IsEmployer: models.Bool(true), AfterRawID: 3, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), employers, "count ignores cursor and limit")

	candidates, err := repo.Count(ctx, models.ScanFilter{IsCandidate: models.Bool(true)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), candidates)
}

func testDelete(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &models.ParsedJob{RawID: 8, IsCandidate: models.Bool(true), IsEmployer: models.Bool(true)}))
	require.NoError(t, repo.Delete(ctx, 8))

	_, err := repo.Get(ctx, 8)
	assert.True(t, apperrors.IsNotFound(err))

	err = repo.Delete(ctx, 8)
	assert.True(t, apperrors.IsNotFound(err))

	// the raw id is free again
	require.NoError(t, repo.Insert(ctx, &models.ParsedJob{RawID: 8, IsCandidate: models.Bool(false), IsEmployer: models.Bool(false)}))
}

func testMaxRawID(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	maxID, err := repo.MaxRawID(ctx)
	require.NoError(t, err)
	assert.Zero(t, maxID)

	for _, id := range []int64{30, 12, 77} {
		require.NoError(t, repo.Upsert(ctx, &models.ParsedJob{RawID: id, IsCandidate: models.Bool(false), IsEmployer: models.Bool(true)}))
	}

	maxID, err = repo.MaxRawID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(77), maxID)
}
