// Package memory is an in-process Repository used by tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	apperrors "geojobs/internal/errors"
	"geojobs/internal/models"
	"geojobs/internal/storage"
)

type Store struct {
	mu   sync.RWMutex
	rows map[int64]models.ParsedJob
}

var _ storage.Repository = (*Store)(nil)

func New() *Store {
	return &Store{rows: make(map[int64]models.ParsedJob)}
}

func (s *Store) Insert(ctx context.Context, job *models.ParsedJob) error {
	row, err := storage.PrepareWrite(job)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[row.RawID]; ok {
		return apperrors.DuplicateKey(fmt.Sprintf("parsed job %d already exists", row.RawID), nil)
	}
	s.rows[row.RawID] = row
	return nil
}

func (s *Store) Upsert(ctx context.Context, job *models.ParsedJob) error {
	row, err := storage.PrepareWrite(job)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.rows[row.RawID] = row
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(ctx context.Context, rawID int64) (*models.ParsedJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	row, ok := s.rows[rawID]
	s.mu.RUnlock()

	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("parsed job %d", rawID), nil)
	}
	out := row.Normalized()
	return &out, nil
}

func (s *Store) Scan(ctx context.Context, filter models.ScanFilter) ([]models.ParsedJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	ids := make([]int64, 0, len(s.rows))
	for id, row := range s.rows {
		if id > filter.AfterRawID && filter.Match(&row) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	limit := filter.EffectiveLimit()
	if len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]models.ParsedJob, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.rows[id].Normalized())
	}
	s.mu.RUnlock()

	return out, nil
}

func (s *Store) Count(ctx context.Context, filter models.ScanFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, row := range s.rows {
		if filter.Match(&row) {
			n++
		}
	}
	return n, nil
}

func (s *Store) Delete(ctx context.Context, rawID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[rawID]; !ok {
		return apperrors.NotFound(fmt.Sprintf("parsed job %d", rawID), nil)
	}
	delete(s.rows, rawID)
	return nil
}

func (s *Store) MaxRawID(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var maxID int64
	for id := range s.rows {
		if id > maxID {
			maxID = id
		}
	}
	return maxID, nil
}

// Len is the number of stored rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
