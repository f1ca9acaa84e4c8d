package store

import (
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents a schema migration step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered list of all schema migrations.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: blobs, versions, quota_scopes, global_stats",
		SQL: `
CREATE TABLE IF NOT EXISTS blobs (
  id TEXT PRIMARY KEY,
  digest TEXT NOT NULL UNIQUE,
  storage_key TEXT NOT NULL,
  original_size_bytes INTEGER NOT NULL DEFAULT 0,
  compressed_size_bytes INTEGER NOT NULL DEFAULT 0,
  reference_count INTEGER NOT NULL DEFAULT 1,
  pending_delete INTEGER NOT NULL DEFAULT 0,
  last_accessed TEXT,
  created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS versions (
  id TEXT PRIMARY KEY,
  file_id TEXT NOT NULL,
  scope_id TEXT NOT NULL DEFAULT '',
  version_number INTEGER NOT NULL,
  raw_size_bytes INTEGER NOT NULL DEFAULT 0,
  digest TEXT NOT NULL,
  blob_id TEXT NOT NULL,
  storage_kind TEXT NOT NULL,
  is_priority INTEGER NOT NULL DEFAULT 0,
  change_kind TEXT NOT NULL,
  created_at TEXT NOT NULL,
  UNIQUE(file_id, version_number),
  FOREIGN KEY (blob_id) REFERENCES blobs(id)
);

CREATE TABLE IF NOT EXISTS quota_scopes (
  scope_id TEXT PRIMARY KEY,
  max_size_bytes INTEGER NOT NULL DEFAULT 0,
  headroom_bytes INTEGER NOT NULL DEFAULT 0,
  max_depth INTEGER NOT NULL DEFAULT 0,
  current_usage_bytes INTEGER NOT NULL DEFAULT 0,
  enabled INTEGER NOT NULL DEFAULT 1,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS global_stats (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  total_versions INTEGER NOT NULL DEFAULT 0,
  total_raw_bytes INTEGER NOT NULL DEFAULT 0,
  total_compressed_bytes INTEGER NOT NULL DEFAULT 0,
  last_priority_run_at TEXT
);

INSERT OR IGNORE INTO global_stats (id) VALUES (1);

CREATE INDEX IF NOT EXISTS idx_versions_file ON versions(file_id, version_number);
CREATE INDEX IF NOT EXISTS idx_versions_blob ON versions(blob_id);
CREATE INDEX IF NOT EXISTS idx_blobs_digest ON blobs(digest);
`,
	},
	{
		Version:     2,
		Description: "reclaim query index tuning from measured query plans",
		SQL: `
CREATE INDEX IF NOT EXISTS idx_versions_scope_priority_age ON versions(scope_id, is_priority, created_at);
CREATE INDEX IF NOT EXISTS idx_blobs_pending ON blobs(pending_delete) WHERE pending_delete = 1;
CREATE INDEX IF NOT EXISTS idx_blobs_refcount ON blobs(reference_count) WHERE reference_count = 0;
`,
	},
}

const migrationsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
);
`

// ensureMigrationsTable creates the schema_migrations table if it doesn't exist.
func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(migrationsTableSQL)
	return err
}

// currentVersion returns the highest applied migration version, or 0 if none.
func currentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// runMigrations applies all pending migrations in order.
func runMigrations(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	current, err := currentVersion(db)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	for _, m := range sorted {
		if m.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))", m.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
