package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewMigratorSortsAndRejectsDuplicates(t *testing.T) {
	m, err := NewMigrator(nil, []Migration{
		{Version: 2, Description: "second"},
		{Version: 1, Description: "first"},
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, m.migrations[0].Version)
	assert.Equal(t, 2, m.migrations[1].Version)

	_, err = NewMigrator(nil, []Migration{{Version: 1}, {Version: 1}}, zap.NewNop())
	assert.Error(t, err)
}

func TestStatusOf(t *testing.T) {
	at := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	status := statusOf(
		[]Migration{{Version: 1}, {Version: 2}},
		map[int]time.Time{1: at},
	)

	require.Len(t, status, 2)
	require.NotNil(t, status[0].AppliedAt)
	assert.True(t, at.Equal(*status[0].AppliedAt))
	assert.Nil(t, status[1].AppliedAt)
}
