package store

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func writeTestDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE slice (
		id INTEGER PRIMARY KEY,
		name TEXT,
		top_level_name TEXT,
		iteration INTEGER,
		subtest TEXT,
		dur INTEGER
	)`)
	if err != nil {
		t.Fatalf("creating slice table: %v", err)
	}

	for i, ev := range testEvents() {
		_, err = db.Exec(
			"INSERT INTO slice (id, name, top_level_name, iteration, subtest, dur) VALUES (?, ?, ?, ?, ?, ?)",
			ev.ID, ev.Name, ev.TopLevelName, ev.Iteration, ev.Subtest, ev.Dur)
		if err != nil {
			t.Fatalf("inserting row %d: %v", i, err)
		}
	}
	return path
}

func TestLoadSQLite(t *testing.T) {
	path := writeTestDB(t)

	events, err := LoadSQLite(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := testEvents()
	if len(events) != len(want) {
		t.Fatalf("loaded %d events, want %d", len(events), len(want))
	}
	for i, ev := range events {
		if ev != want[i] {
			t.Errorf("event %d: got %+v, want %+v", i, ev, want[i])
		}
	}
}

func TestLoadSQLiteMissingTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if _, err := db.Exec("CREATE TABLE other (id INTEGER)"); err != nil {
		t.Fatalf("creating table: %v", err)
	}
	db.Close()

	if _, err := LoadSQLite(path); err == nil {
		t.Error("expected error for missing slice table")
	}
}

func TestLoadSQLiteFingerprintMatchesDump(t *testing.T) {
	path := writeTestDB(t)

	fromDB, err := LoadSQLite(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h1, err := Load(fromDB)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := Load(testEvents())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h1.Fingerprint() != h2.Fingerprint() {
		t.Error("sqlite-loaded dataset fingerprint differs from in-memory fixture")
	}
}
