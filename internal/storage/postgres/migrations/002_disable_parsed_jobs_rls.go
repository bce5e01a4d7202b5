package migrations

import "geojobs/internal/storage/postgres"

// Row-level security stays off: every role that can reach the table sees
// every row.
var DisableParsedJobsRLS = postgres.Migration{
	Version:     2,
	Description: "Disable row level security on parsed_jobs",
	Up:          `ALTER TABLE parsed_jobs DISABLE ROW LEVEL SECURITY`,
	Down:        `ALTER TABLE parsed_jobs ENABLE ROW LEVEL SECURITY`,
}
