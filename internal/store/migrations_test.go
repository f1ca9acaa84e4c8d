package store

import (
	"database/sql"
	"net/url"
	"path/filepath"
	"testing"
)

func testRawDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	u := url.URL{Scheme: "file", Path: path}
	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunMigrationsFreshDB(t *testing.T) {
	db := testRawDB(t)

	if err := runMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	version, err := currentVersion(db)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected version 2, got %d", version)
	}

	for _, table := range []string{"blobs", "versions", "quota_scopes", "global_stats"} {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count); err != nil {
			t.Fatalf("check %s: %v", table, err)
		}
		if count != 1 {
			t.Fatalf("%s table not created", table)
		}
	}

	// The global_stats singleton row is seeded by the migration.
	var rows int
	if err := db.QueryRow("SELECT COUNT(*) FROM global_stats").Scan(&rows); err != nil {
		t.Fatalf("check seed row: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 seeded stats row, got %d", rows)
	}
}

func TestRunMigrationsIdempotent(t *testing.T) {
	db := testRawDB(t)

	if err := runMigrations(db); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := runMigrations(db); err != nil {
		t.Fatalf("second run: %v", err)
	}

	version, err := currentVersion(db)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected version 2, got %d", version)
	}
}

func TestVersionsUniquePerFile(t *testing.T) {
	db := testRawDB(t)
	if err := runMigrations(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	insert := `INSERT INTO blobs (id, digest, storage_key, created_at) VALUES ('bl-1', 'd', 'k', datetime('now'))`
	if _, err := db.Exec(insert); err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	row := `INSERT INTO versions (id, file_id, scope_id, version_number, digest, blob_id, storage_kind, change_kind, created_at)
		VALUES (?, 'f', '', 1, 'd', 'bl-1', 'primary', 'update', datetime('now'))`
	if _, err := db.Exec(row, "vr-1"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := db.Exec(row, "vr-2"); err == nil {
		t.Fatal("expected unique constraint on (file_id, version_number)")
	}
}
