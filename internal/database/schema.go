package database

import "database/sql"

// Table definitions, applied idempotently at startup. The portal owns its
// schema; there is no separate migration tooling at this scale.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT,
		phone TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		citizenship_num TEXT UNIQUE,
		district TEXT,
		city TEXT,
		ward_num INTEGER,
		admin BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS citizenships (
		id SERIAL PRIMARY KEY,
		phone TEXT NOT NULL UNIQUE,
		path TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending'
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		ward_num INTEGER NOT NULL,
		district TEXT NOT NULL,
		city TEXT NOT NULL,
		total_budget DOUBLE PRECISION NOT NULL DEFAULT 0,
		budget_utilized DOUBLE PRECISION NOT NULL DEFAULT 0,
		time_elapsed_days INTEGER,
		status TEXT NOT NULL DEFAULT 'pending',
		deadline DATE,
		image_urls TEXT[],
		fundraised DOUBLE PRECISION NOT NULL DEFAULT 0,
		contractor TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS issues (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		reason TEXT NOT NULL,
		proof_urls TEXT[],
		reporter_phone TEXT,
		anonymous BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS expenditures (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		title TEXT NOT NULL,
		description TEXT,
		amount DOUBLE PRECISION NOT NULL,
		bill_url TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS milestones (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		title TEXT NOT NULL,
		description TEXT,
		due_date DATE,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_issues_project ON issues(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_expenditures_project ON expenditures(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_milestones_project ON milestones(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_citizenships_status ON citizenships(status)`,
}

// EnsureSchema creates all tables and indexes if they do not exist yet.
func EnsureSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
