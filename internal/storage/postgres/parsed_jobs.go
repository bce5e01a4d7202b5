package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "geojobs/internal/errors"
	"geojobs/internal/models"
	"geojobs/internal/storage"

	"github.com/gocraft/dbr/v2"
	"go.uber.org/zap"
)

const parsedJobsTable = "parsed_jobs"

var _ storage.Repository = (*Store)(nil)

var (
	insertQuery = fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		parsedJobsTable,
		strings.Join(models.Columns, ", "),
		placeholders(len(models.Columns)),
	)

	upsertQuery = insertQuery + " ON CONFLICT (raw_id) DO UPDATE SET " + excludedAssignments()
)

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func excludedAssignments() string {
	sets := make([]string, 0, len(models.Columns)-1)
	for _, col := range models.Columns {
		if col == "raw_id" {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	return strings.Join(sets, ", ")
}

// rowValues lines up with models.Columns.
func rowValues(j *models.ParsedJob) []interface{} {
	return []interface{}{
		j.RawID, j.IsCandidate, j.IsEmployer,
		j.PositionTitle, j.City, j.Country, j.WorkFormat, j.ExperienceYears,
		j.SalaryFrom, j.SalaryTo, j.SalaryCurrency, j.SalaryPeriod,
		j.Skills, j.Equipment, j.Software,
		j.Education, j.Contacts, j.SourceText, j.Confidence,
		j.SourceID, j.ExternalID, j.Author, j.URL,
		timestamp(j.PublishedAt), timestamp(j.FetchedAt), j.Attachments,
	}
}

// timestamp keeps the offset in the literal so timestamptz does not depend
// on the session time zone.
func timestamp(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func (s *Store) Insert(ctx context.Context, job *models.ParsedJob) error {
	row, err := storage.PrepareWrite(job)
	if err != nil {
		return err
	}

	err = s.withWriteRetry(ctx, "insert", func() error {
		_, err := s.sess.
			InsertBySql(insertQuery, rowValues(&row)...).
			ExecContext(ctx)
		return err
	})

	if err != nil {
		err = classify(err, rawIDMessage(row.RawID)+" already exists")
		if apperrors.IsDuplicateKey(err) {
			s.logger.Debug("parsed job already exists", zap.Int64("raw_id", row.RawID))
		} else {
			s.logger.Error("failed to insert parsed job",
				zap.Int64("raw_id", row.RawID),
				zap.Error(err),
			)
		}
		return fmt.Errorf("insert parsed job: %w", err)
	}

	return nil
}

func (s *Store) Upsert(ctx context.Context, job *models.ParsedJob) error {
	row, err := storage.PrepareWrite(job)
	if err != nil {
		return err
	}

	err = s.withRetry(ctx, "upsert", func() error {
		_, err := s.sess.
			InsertBySql(upsertQuery, rowValues(&row)...).
			ExecContext(ctx)
		return err
	})

	if err != nil {
		s.logger.Error("failed to upsert parsed job",
			zap.Int64("raw_id", row.RawID),
			zap.Error(err),
		)
		return fmt.Errorf("upsert parsed job: %w", classify(err, rawIDMessage(row.RawID)))
	}

	return nil
}

func (s *Store) Get(ctx context.Context, rawID int64) (*models.ParsedJob, error) {
	var job models.ParsedJob

	err := s.withRetry(ctx, "get", func() error {
		return s.sess.
			Select(models.Columns...).
			From(parsedJobsTable).
			Where("raw_id = ?", rawID).
			LoadOneContext(ctx, &job)
	})

	if errors.Is(err, dbr.ErrNotFound) {
		return nil, apperrors.NotFound(rawIDMessage(rawID), nil)
	}

	if err != nil {
		s.logger.Error("failed to get parsed job",
			zap.Int64("raw_id", rawID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("get parsed job: %w", classify(err, rawIDMessage(rawID)))
	}

	out := job.Normalized()
	return &out, nil
}

func (s *Store) Scan(ctx context.Context, filter models.ScanFilter) ([]models.ParsedJob, error) {
	var jobs []models.ParsedJob

	err := s.withRetry(ctx, "scan", func() error {
		jobs = jobs[:0]
		stmt := s.sess.
			Select(models.Columns...).
			From(parsedJobsTable)

		if cond := scanCondition(filter, true); cond != nil {
			stmt = stmt.Where(cond)
		}

		_, err := stmt.
			OrderBy("raw_id").
			Limit(uint64(filter.EffectiveLimit())).
			LoadContext(ctx, &jobs)
		return err
	})

	if err != nil {
		s.logger.Error("failed to scan parsed jobs",
			zap.Any("filter", filter),
			zap.Error(err),
		)
		return nil, fmt.Errorf("scan parsed jobs: %w", classify(err, "scan parsed jobs"))
	}

	out := make([]models.ParsedJob, 0, len(jobs))
	for i := range jobs {
		out = append(out, jobs[i].Normalized())
	}

	s.logger.Debug("parsed jobs scanned",
		zap.Int64("after_raw_id", filter.AfterRawID),
		zap.Int("count", len(out)),
	)

	return out, nil
}

func (s *Store) Count(ctx context.Context, filter models.ScanFilter) (int64, error) {
	var count int64

	err := s.withRetry(ctx, "count", func() error {
		stmt := s.sess.
			Select("COUNT(*)").
			From(parsedJobsTable)

		if cond := scanCondition(filter, false); cond != nil {
			stmt = stmt.Where(cond)
		}

		return stmt.LoadOneContext(ctx, &count)
	})

	if err != nil {
		s.logger.Error("failed to count parsed jobs",
			zap.Any("filter", filter),
			zap.Error(err),
		)
		return 0, fmt.Errorf("count parsed jobs: %w", classify(err, "count parsed jobs"))
	}

	return count, nil
}

func (s *Store) Delete(ctx context.Context, rawID int64) error {
	var affected int64

	err := s.withWriteRetry(ctx, "delete", func() error {
		result, err := s.sess.
			DeleteFrom(parsedJobsTable).
			Where("raw_id = ?", rawID).
			ExecContext(ctx)
		if err != nil {
			return err
		}
		affected, _ = result.RowsAffected()
		return nil
	})

	if err != nil {
		s.logger.Error("failed to delete parsed job",
			zap.Int64("raw_id", rawID),
			zap.Error(err),
		)
		return fmt.Errorf("delete parsed job: %w", classify(err, rawIDMessage(rawID)))
	}

	if affected == 0 {
		return apperrors.NotFound(rawIDMessage(rawID), nil)
	}

	s.logger.Info("parsed job deleted", zap.Int64("raw_id", rawID))

	return nil
}

// MaxRawID returns the highest stored raw_id, or 0 for an empty table.
func (s *Store) MaxRawID(ctx context.Context) (int64, error) {
	var maxID int64

	err := s.withRetry(ctx, "max raw id", func() error {
		return s.sess.
			Select("COALESCE(MAX(raw_id), 0)").
			From(parsedJobsTable).
			LoadOneContext(ctx, &maxID)
	})

	if err != nil {
		s.logger.Error("failed to get max raw id", zap.Error(err))
		return 0, fmt.Errorf("max raw id: %w", classify(err, "max raw id"))
	}

	return maxID, nil
}

type column struct {
	name  string
	value string
}

// scanCondition mirrors models.ScanFilter.Match. The keyset cursor is only
// applied for scans.
func scanCondition(f models.ScanFilter, withCursor bool) dbr.Builder {
	var conds []dbr.Builder

	if f.IsCandidate != nil {
		conds = append(conds, dbr.Eq("is_candidate", *f.IsCandidate))
	}
	if f.IsEmployer != nil {
		conds = append(conds, dbr.Eq("is_employer", *f.IsEmployer))
	}

	for _, c := range []column{
		{"city", f.City},
		{"country", f.Country},
		{"work_format", f.WorkFormat},
		{"salary_currency", f.SalaryCurrency},
		{"salary_period", f.SalaryPeriod},
		{"source_id", f.SourceID},
	} {
		if c.value != "" {
			conds = append(conds, dbr.Expr(fmt.Sprintf("lower(%s) = lower(?)", c.name), c.value))
		}
	}

	if f.PositionContains != "" {
		conds = append(conds, dbr.Expr("strpos(lower(position_title), lower(?)) > 0", f.PositionContains))
	}

	for _, c := range []column{
		{"skills", f.Skill},
		{"equipment", f.Equipment},
		{"software", f.Software},
	} {
		if c.value != "" {
			conds = append(conds, dbr.Expr(fmt.Sprintf("? = ANY(%s)", c.name), c.value))
		}
	}

	if f.SalaryAtLeast != nil {
		conds = append(conds, dbr.Expr("COALESCE(salary_to, salary_from) >= ?", *f.SalaryAtLeast))
	}
	if f.SalaryAtMost != nil {
		conds = append(conds, dbr.Expr("COALESCE(salary_from, salary_to) <= ?", *f.SalaryAtMost))
	}
	if f.MinConfidence != nil {
		conds = append(conds, dbr.Gte("confidence", *f.MinConfidence))
	}
	if f.PublishedAfter != nil {
		conds = append(conds, dbr.Expr("published_at >= ?", f.PublishedAfter.Format(time.RFC3339Nano)))
	}
	if withCursor && f.AfterRawID > 0 {
		conds = append(conds, dbr.Gt("raw_id", f.AfterRawID))
	}

	if len(conds) == 0 {
		return nil
	}
	return dbr.And(conds...)
}
