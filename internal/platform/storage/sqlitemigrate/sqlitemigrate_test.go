package sqlitemigrate

import (
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func migrationFS(entries map[string]string) fstest.MapFS {
	fsys := make(fstest.MapFS, len(entries))
	for name, data := range entries {
		fsys[name] = &fstest.MapFile{Data: []byte(data)}
	}
	return fsys
}

func countApplied(t *testing.T, db *sql.DB) int {
	t.Helper()
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count applied: %v", err)
	}
	return count
}

func hasTable(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var found string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", name).Scan(&found)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		t.Fatalf("look up table %s: %v", name, err)
	}
	return true
}

func TestApplyMigrationsCreatesAndRecords(t *testing.T) {
	db := testDB(t)

	fsys := migrationFS(map[string]string{
		"001_sessions.sql": "-- +migrate Up\nCREATE TABLE sessions(session_id TEXT PRIMARY KEY);",
		"002_rounds.sql":   "-- +migrate Up\nCREATE TABLE rounds(id INTEGER PRIMARY KEY);",
	})
	if err := ApplyMigrations(db, fsys, ""); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}

	if got := countApplied(t, db); got != 2 {
		t.Fatalf("applied %d migrations, want 2", got)
	}
	for _, table := range []string{"sessions", "rounds"} {
		if !hasTable(t, db, table) {
			t.Fatalf("table %s missing", table)
		}
	}
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	db := testDB(t)

	fsys := migrationFS(map[string]string{
		"001_sessions.sql": "-- +migrate Up\nCREATE TABLE sessions(session_id TEXT PRIMARY KEY);",
	})
	if err := ApplyMigrations(db, fsys, ""); err != nil {
		t.Fatalf("first ApplyMigrations: %v", err)
	}
	if err := ApplyMigrations(db, fsys, ""); err != nil {
		t.Fatalf("second ApplyMigrations: %v", err)
	}
	if got := countApplied(t, db); got != 1 {
		t.Fatalf("applied %d migrations after replay, want 1", got)
	}
}

func TestFailedMigrationIsNotRecorded(t *testing.T) {
	db := testDB(t)

	broken := migrationFS(map[string]string{
		"001_sessions.sql": "-- +migrate Up\nCREAT TABLE sessions(session_id TEXT);",
	})
	if err := ApplyMigrations(db, broken, ""); err == nil {
		t.Fatal("expected the broken migration to fail")
	}
	if got := countApplied(t, db); got != 0 {
		t.Fatalf("recorded %d migrations after failure, want 0", got)
	}

	fixed := migrationFS(map[string]string{
		"001_sessions.sql": "-- +migrate Up\nCREATE TABLE sessions(session_id TEXT PRIMARY KEY);",
	})
	if err := ApplyMigrations(db, fixed, ""); err != nil {
		t.Fatalf("apply fixed migration: %v", err)
	}
	if got := countApplied(t, db); got != 1 {
		t.Fatalf("recorded %d migrations after fix, want 1", got)
	}
}

func TestApplyMigrationsUnderRoot(t *testing.T) {
	db := testDB(t)

	fsys := migrationFS(map[string]string{
		"schema/001_sessions.sql": "-- +migrate Up\nCREATE TABLE sessions(session_id TEXT PRIMARY KEY);",
	})
	if err := ApplyMigrations(db, fsys, "schema"); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}

	var key string
	if err := db.QueryRow("SELECT name FROM schema_migrations LIMIT 1").Scan(&key); err != nil {
		t.Fatalf("read applied key: %v", err)
	}
	if key != "schema/001_sessions.sql" {
		t.Fatalf("applied key = %q, want schema/001_sessions.sql", key)
	}
	if !hasTable(t, db, "sessions") {
		t.Fatal("table sessions missing")
	}
}
