// Package store persists simulation runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    name TEXT,
    status TEXT NOT NULL,      -- 'running', 'complete', 'failed'
    error TEXT,
    seed INTEGER NOT NULL,
    threads INTEGER NOT NULL,
    iterations INTEGER NOT NULL,
    start_date TEXT NOT NULL,
    policy TEXT,
    config TEXT,               -- YAML
    started_at TEXT NOT NULL,
    finished_at TEXT
);

CREATE TABLE IF NOT EXISTS infections (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    day INTEGER NOT NULL,
    time REAL NOT NULL,
    infector TEXT,             -- empty for seeded infections
    infected TEXT NOT NULL,
    container TEXT,
    activity TEXT,
    strain TEXT,
    PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_infections_day ON infections(run_id, day);
CREATE INDEX IF NOT EXISTS idx_infections_infected ON infections(run_id, infected);

CREATE TABLE IF NOT EXISTS reports (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    day INTEGER NOT NULL,
    date TEXT NOT NULL,
    name TEXT NOT NULL,        -- 'total' or a district
    n_population INTEGER NOT NULL,
    n_susceptible INTEGER NOT NULL,
    n_infected_but_not_contagious INTEGER NOT NULL,
    n_contagious INTEGER NOT NULL,
    n_seriously_sick INTEGER NOT NULL,
    n_critical INTEGER NOT NULL,
    n_recovered INTEGER NOT NULL,
    n_in_quarantine_full INTEGER NOT NULL,
    n_in_quarantine_home INTEGER NOT NULL,
    n_infected_cumulative INTEGER NOT NULL,
    n_symptomatic_cumulative INTEGER NOT NULL,
    PRIMARY KEY (run_id, day, name)
);

CREATE TABLE IF NOT EXISTS restrictions (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    day INTEGER NOT NULL,
    date TEXT NOT NULL,
    activity TEXT NOT NULL,
    fraction REAL NOT NULL,
    exposure REAL NOT NULL,
    mask TEXT NOT NULL,
    compliance REAL NOT NULL,
    PRIMARY KEY (run_id, day, activity)
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema creates the schema on a fresh database and checks the
// integrity of an existing one.
func InitSchema(ctx context.Context, db *sql.DB) error {
	version, err := getSchemaVersion(ctx, db)
	if err != nil {
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}
	if version > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, SchemaVersion)
	}
	return nil
}

// getSchemaVersion fails when the schema_version table does not exist.
func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}

// ValidateIntegrity runs PRAGMA integrity_check and foreign_key_check.
func ValidateIntegrity(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `PRAGMA integrity_check`)
	if err != nil {
		return fmt.Errorf("failed to run integrity_check: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var result string
		if err := rows.Scan(&result); err != nil {
			return fmt.Errorf("failed to scan integrity_check result: %w", err)
		}
		if result != "ok" {
			return fmt.Errorf("integrity_check failed: %s", result)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	fkRows, err := db.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return fmt.Errorf("failed to run foreign_key_check: %w", err)
	}
	defer fkRows.Close()

	var problems []string
	for fkRows.Next() {
		var table, rowid, parent, fkid sql.NullString
		if err := fkRows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("failed to scan foreign_key_check result: %w", err)
		}
		problems = append(problems, fmt.Sprintf("table=%s rowid=%s parent=%s", table.String, rowid.String, parent.String))
	}
	if len(problems) > 0 {
		return fmt.Errorf("foreign_key_check failed: %v", problems)
	}
	return fkRows.Err()
}
