package migrations

import "geojobs/internal/storage/postgres"

// All returns every migration in version order.
func All() []postgres.Migration {
	return []postgres.Migration{
		CreateParsedJobsTable,
		DisableParsedJobsRLS,
	}
}
