package migrations

import (
	"strings"
	"testing"

	"geojobs/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllOrderedAndComplete(t *testing.T) {
	all := All()
	require.NotEmpty(t, all)

	for i, m := range all {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.Description)
		assert.NotEmpty(t, strings.TrimSpace(m.Up))
		assert.NotEmpty(t, strings.TrimSpace(m.Down))
	}
}

func TestCreateTableShape(t *testing.T) {
	up := CreateParsedJobsTable.Up

	for _, col := range []string{
		"raw_id bigint PRIMARY KEY",
		"is_candidate boolean NOT NULL",
		"is_employer boolean NOT NULL",
		"skills text[] DEFAULT '{}'",
		"equipment text[] DEFAULT '{}'",
		"software text[] DEFAULT '{}'",
		"contacts jsonb DEFAULT '{}'::jsonb",
		"attachments jsonb",
		"confidence numeric",
		"published_at timestamptz",
	} {
		assert.Contains(t, up, col)
	}

	assert.NotContains(t, up, "REFERENCES")
	assert.NotContains(t, up, "CHECK")
}

func TestRowLevelSecurityDisabled(t *testing.T) {
	assert.Equal(t, "ALTER TABLE parsed_jobs DISABLE ROW LEVEL SECURITY", DisableParsedJobsRLS.Up)
	assert.Greater(t, DisableParsedJobsRLS.Version, CreateParsedJobsTable.Version)
}

func TestEveryModelColumnCreated(t *testing.T) {
	for _, col := range models.Columns {
		assert.Contains(t, CreateParsedJobsTable.Up, "\t\t\t"+col+" ", col)
	}
}
