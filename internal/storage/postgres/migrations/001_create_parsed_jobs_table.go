package migrations

import "geojobs/internal/storage/postgres"

// raw_id mirrors raw_items.id; no foreign key is declared so the table can
// be loaded independently of the raw item store.
var CreateParsedJobsTable = postgres.Migration{
	Version:     1,
	Description: "Create parsed_jobs table",
	Up: `
		CREATE TABLE IF NOT EXISTS parsed_jobs (
			raw_id bigint PRIMARY KEY,
			is_candidate boolean NOT NULL,
			is_employer boolean NOT NULL,
			position_title text,
			city text,
			country text,
			work_format text,
			experience_years numeric,
			salary_from numeric,
			salary_to numeric,
			salary_currency text,
			salary_period text,
			skills text[] DEFAULT '{}',
			equipment text[] DEFAULT '{}',
			software text[] DEFAULT '{}',
			education text,
			contacts jsonb DEFAULT '{}'::jsonb,
			source_text text,
			confidence numeric,
			source_id text,
			external_id text,
			author text,
			url text,
			published_at timestamptz,
			fetched_at timestamptz,
			attachments jsonb
		)
	`,
	Down: `DROP TABLE IF EXISTS parsed_jobs`,
}
