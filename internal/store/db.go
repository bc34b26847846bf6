package store

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database holding workout plans and the
// crash-recovery snapshot.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// Open opens the SQLite database at path, creating it (and its directory)
// if necessary, and seeds the built-in workouts on first run.
func Open(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		panic("Store: logger cannot be nil")
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Run migrations
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	s := newStore(db, logger)
	if err := s.seedBuiltins(); err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding built-in workouts: %w", err)
	}
	return s, nil
}

func newStore(db *sql.DB, logger *log.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DefaultPath returns the database location under the user's home directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".treadmill-hud", "data.db"), nil
}
