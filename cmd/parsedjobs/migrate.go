package main

import (
	"fmt"
	"time"

	"geojobs/internal/storage/postgres"
	"geojobs/internal/storage/postgres/migrations"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or inspect schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	Args:  cobra.NoArgs,
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the newest applied migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateDown,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and when they were applied",
	Args:  cobra.NoArgs,
	RunE:  runMigrateStatus,
}

var migrateDownSteps int

func init() {
	migrateDownCmd.Flags().IntVar(&migrateDownSteps, "steps", 1, "Number of migrations to roll back")

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

func withMigrator(fn func(m *postgres.Migrator) error) error {
	sess, err := openStore()
	if err != nil {
		return err
	}
	defer sess.Close()

	migrator, err := postgres.NewMigrator(sess.store, migrations.All(), sess.log)
	if err != nil {
		return err
	}
	return fn(migrator)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	return withMigrator(func(m *postgres.Migrator) error {
		n, err := m.Up(cmd.Context())
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s)\n", n)
		return nil
	})
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	if migrateDownSteps < 1 {
		return fmt.Errorf("--steps must be at least 1")
	}

	return withMigrator(func(m *postgres.Migrator) error {
		n, err := m.Down(cmd.Context(), migrateDownSteps)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d migration(s)\n", n)
		return nil
	})
}

type migrationStatusView struct {
	Version     int        `json:"version"`
	Description string     `json:"description"`
	AppliedAt   *time.Time `json:"applied_at"`
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	return withMigrator(func(m *postgres.Migrator) error {
		status, err := m.Status(cmd.Context())
		if err != nil {
			return err
		}

		view := make([]migrationStatusView, 0, len(status))
		for _, st := range status {
			view = append(view, migrationStatusView{
				Version:     st.Version,
				Description: st.Description,
				AppliedAt:   st.AppliedAt,
			})
		}
		return writeJSON(cmd.OutOrStdout(), view)
	})
}
