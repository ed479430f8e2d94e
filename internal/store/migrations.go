package store

import (
	"database/sql"
	"fmt"

	"codex/internal/logging"
)

// Schema versions:
// v1: kv(key, value)
// v2: added updated_at column
const CurrentSchemaVersion = 2

// Migration adds a column to an existing table.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations handle databases created before a column existed.
var pendingMigrations = []Migration{
	{"kv", "updated_at", "DATETIME"},
}

// RunMigrations creates the schema and applies column migrations.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create kv table: %w", err)
	}

	applied := 0
	for _, m := range pendingMigrations {
		if columnExists(db, m.Table, m.Column) {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(stmt); err != nil {
			logging.StoreError("Migration %s.%s failed: %v", m.Table, m.Column, err)
			return fmt.Errorf("failed to add column %s.%s: %w", m.Table, m.Column, err)
		}
		applied++
	}

	if GetSchemaVersion(db) < CurrentSchemaVersion {
		if err := SetSchemaVersion(db, CurrentSchemaVersion); err != nil {
			return err
		}
	}
	logging.Store("Schema migrations complete: applied=%d", applied)
	return nil
}

// columnExists checks if a column exists in a table using PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		logging.StoreDebug("PRAGMA table_info(%s) failed: %v", table, err)
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

// tableExists checks if a table exists in the database.
func tableExists(db *sql.DB, table string) bool {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count); err != nil {
		return false
	}
	return count > 0
}

// GetSchemaVersion returns the recorded schema version, 0 if none.
func GetSchemaVersion(db *sql.DB) int {
	if !tableExists(db, "schema_versions") {
		return 0
	}
	var version int
	if err := db.QueryRow("SELECT version FROM schema_versions ORDER BY id DESC LIMIT 1").Scan(&version); err != nil {
		return 0
	}
	return version
}

// SetSchemaVersion records a new schema version in the database.
func SetSchemaVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version INTEGER NOT NULL,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("failed to create schema_versions table: %w", err)
	}
	if _, err := db.Exec("INSERT INTO schema_versions (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	logging.Store("Schema version set to %d", version)
	return nil
}
