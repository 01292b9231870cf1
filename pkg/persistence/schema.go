package persistence

import (
	"database/sql"
	"fmt"
)

// CurrentSchemaVersion defines the current schema version for migration support.
const CurrentSchemaVersion = 1

// initializeSchemaWithMigrations ensures the database schema is at the
// current version.
func initializeSchemaWithMigrations(db *sql.DB) error {
	currentVersion, err := getSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	// Empty database (version 0): create fresh schema
	if currentVersion == 0 {
		return createSchema(db)
	}

	if currentVersion == CurrentSchemaVersion {
		return nil
	}

	return runMigrations(db, currentVersion, CurrentSchemaVersion)
}

// runMigrations applies migrations from current version to target version.
func runMigrations(db *sql.DB, fromVersion, toVersion int) error {
	for version := fromVersion + 1; version <= toVersion; version++ {
		if err := runMigration(db, version); err != nil {
			return fmt.Errorf("migration to version %d failed: %w", version, err)
		}
		if err := setSchemaVersion(db, version); err != nil {
			return fmt.Errorf("failed to update schema version to %d: %w", version, err)
		}
	}
	return nil
}

func runMigration(db *sql.DB, version int) error {
	switch version {
	default:
		return fmt.Errorf("unknown migration version: %d", version)
	}
}

// createSchema creates the full schema at the current version.
func createSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS factory_logs (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMP NOT NULL,
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			persona_name TEXT,
			work_item_id TEXT,
			project TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_factory_logs_created_at ON factory_logs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_factory_logs_persona ON factory_logs(persona_name)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS completed_items (
			id TEXT PRIMARY KEY,
			external_ref TEXT,
			title TEXT NOT NULL,
			project TEXT,
			completed_by TEXT,
			status TEXT NOT NULL,
			detail TEXT,
			completed_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_completed_items_ref ON completed_items(external_ref)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return setSchemaVersion(db, CurrentSchemaVersion)
}

// getSchemaVersion returns the schema version, or 0 for an empty database.
func getSchemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'`,
	).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to check schema_version table: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func setSchemaVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(`DELETE FROM schema_version`); err != nil {
		return fmt.Errorf("failed to clear schema version: %w", err)
	}
	if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return nil
}
