package bugstore

import (
	"context"
	"database/sql"
	"fmt"
)

const SchemaVersion = 1

// Migrate creates (or upgrades) the store schema in-place.
//
// The schema supports:
// - job lifecycle rows (status, log lines, request context)
// - bug rows owned by a job, deduplicated globally by fingerprint
//
// The partial unique index on bugs.fingerprint is the serialization point
// for concurrent jobs racing on the same failure: the second writer's
// insert fails and is re-classified as a late-detected duplicate.
func Migrate(ctx context.Context, db *sql.DB) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if db == nil {
		return fmt.Errorf("db is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL
		);`,
		`INSERT INTO schema_meta (id, schema_version)
			VALUES (1, 0)
			ON CONFLICT(id) DO NOTHING;`,

		`CREATE TABLE IF NOT EXISTS jobs (
			job_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			test_url TEXT NOT NULL,
			provider TEXT NOT NULL DEFAULT '',
			cycle_overview TEXT NOT NULL DEFAULT '',
			testing_instructions TEXT NOT NULL DEFAULT '',
			-- logs is an append-only JSON array of log lines.
			logs TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);`,

		`CREATE TABLE IF NOT EXISTS bugs (
			bug_id TEXT PRIMARY KEY,
			job_id TEXT NOT NULL,
			test_name TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			summary TEXT NOT NULL,
			environment TEXT NOT NULL DEFAULT '',
			preconditions TEXT NOT NULL DEFAULT '',
			steps TEXT NOT NULL DEFAULT '',
			actual_result TEXT NOT NULL DEFAULT '',
			expected_result TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL,
			status TEXT NOT NULL,
			external_id TEXT,
			artifact_path TEXT,
			created_at TEXT NOT NULL,
			FOREIGN KEY(job_id) REFERENCES jobs(job_id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_bugs_job_id ON bugs(job_id);`,
		`CREATE INDEX IF NOT EXISTS idx_bugs_created_at ON bugs(created_at);`,
		// Duplicate stubs reference an existing fingerprint, so only the
		// first-seen (non-duplicate) row per fingerprint must be unique.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bugs_fingerprint_first
			ON bugs(fingerprint) WHERE status != 'DUPLICATE';`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE schema_meta SET schema_version = ? WHERE id = 1`,
		SchemaVersion); err != nil {
		return fmt.Errorf("update schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}

	return nil
}
