package store

import (
	"database/sql"
	"log"
	"testing"
)

// NewTestStore returns a Store backed by an in-memory database, migrated and
// seeded, closed automatically when the test ends.
func NewTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enabling foreign keys: %v", err)
	}
	if err := migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	s := newStore(db, log.New(testWriter{t}, "", 0))
	if err := s.seedBuiltins(); err != nil {
		t.Fatalf("seeding built-in workouts: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return s
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
