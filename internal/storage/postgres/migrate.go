package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gocraft/dbr/v2"
	"go.uber.org/zap"
)

const migrationsTable = "schema_migrations"

type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

type MigrationStatus struct {
	Migration
	AppliedAt *time.Time
}

type Migrator struct {
	store      *Store
	migrations []Migration
	logger     *zap.Logger
}

// NewMigrator orders migrations by version. Versions must be unique.
func NewMigrator(store *Store, migrations []Migration, logger *zap.Logger) (*Migrator, error) {
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Version == sorted[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %d", sorted[i].Version)
		}
	}

	return &Migrator{
		store:      store,
		migrations: sorted,
		logger:     logger,
	}, nil
}

func (m *Migrator) CreateMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ` + migrationsTable + ` (
			version integer PRIMARY KEY,
			description text NOT NULL,
			applied_at timestamptz NOT NULL DEFAULT now()
		)
	`

	if _, err := m.store.sess.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	return nil
}

func (m *Migrator) AppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	var rows []struct {
		Version   int       `db:"version"`
		AppliedAt time.Time `db:"applied_at"`
	}

	_, err := m.store.sess.
		Select("version", "applied_at").
		From(migrationsTable).
		OrderBy("version").
		LoadContext(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]time.Time, len(rows))
	for _, r := range rows {
		applied[r.Version] = r.AppliedAt
	}

	return applied, nil
}

// Apply runs the migration and records it in one transaction.
func (m *Migrator) Apply(ctx context.Context, migration Migration) error {
	return m.inTx(ctx, func(tx *dbr.Tx) error {
		if _, err := tx.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}

		if _, err := tx.InsertInto(migrationsTable).
			Pair("version", migration.Version).
			Pair("description", migration.Description).
			ExecContext(ctx); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		return nil
	})
}

func (m *Migrator) Rollback(ctx context.Context, migration Migration) error {
	return m.inTx(ctx, func(tx *dbr.Tx) error {
		if _, err := tx.ExecContext(ctx, migration.Down); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", migration.Version, err)
		}

		if _, err := tx.DeleteFrom(migrationsTable).
			Where("version = ?", migration.Version).
			ExecContext(ctx); err != nil {
			return fmt.Errorf("failed to remove migration record %d: %w", migration.Version, err)
		}

		return nil
	})
}

// Up applies every pending migration in version order and returns how many
// ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.CreateMigrationsTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.AppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, migration := range m.migrations {
		if _, ok := applied[migration.Version]; ok {
			m.logger.Debug("migration already applied",
				zap.Int("version", migration.Version),
				zap.String("description", migration.Description),
			)
			continue
		}

		m.logger.Info("applying migration",
			zap.Int("version", migration.Version),
			zap.String("description", migration.Description),
		)

		if err := m.Apply(ctx, migration); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

// Down rolls back the newest steps applied migrations.
func (m *Migrator) Down(ctx context.Context, steps int) (int, error) {
	if err := m.CreateMigrationsTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.AppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := len(m.migrations) - 1; i >= 0 && count < steps; i-- {
		migration := m.migrations[i]
		if _, ok := applied[migration.Version]; !ok {
			continue
		}

		m.logger.Info("rolling back migration",
			zap.Int("version", migration.Version),
			zap.String("description", migration.Description),
		)

		if err := m.Rollback(ctx, migration); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.CreateMigrationsTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	return statusOf(m.migrations, applied), nil
}

func statusOf(migrations []Migration, applied map[int]time.Time) []MigrationStatus {
	out := make([]MigrationStatus, 0, len(migrations))
	for _, migration := range migrations {
		st := MigrationStatus{Migration: migration}
		if at, ok := applied[migration.Version]; ok {
			at := at
			st.AppliedAt = &at
		}
		out = append(out, st)
	}
	return out
}

func (m *Migrator) inTx(ctx context.Context, fn func(tx *dbr.Tx) error) error {
	tx, err := m.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.RollbackUnlessCommitted()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}
