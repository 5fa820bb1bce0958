// Package store persists group state, recipient profile keys, and group
// update messages in a local SQLite database.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database holding everything the group synchronizer
// needs to survive a restart.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS groups (
	group_id TEXT PRIMARY KEY,
	master_key BLOB NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	revision INTEGER NOT NULL DEFAULT 0,
	active INTEGER NOT NULL DEFAULT 1,
	state BLOB,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS recipient (
	uuid TEXT PRIMARY KEY,
	profile_key BLOB
);
CREATE TABLE IF NOT EXISTS group_update_message (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	group_id TEXT NOT NULL,
	revision INTEGER NOT NULL,
	editor TEXT NOT NULL DEFAULT '',
	change BLOB,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_update_message_group
	ON group_update_message (group_id, revision);
`

// DefaultDataDir returns the default data directory for groupsync databases.
// Uses $XDG_DATA_HOME/groupsync-go, falling back to ~/.local/share/groupsync-go.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "groupsync-go")
}

// Open opens or creates a SQLite store at the given path.
// If dbPath is empty, it defaults to $XDG_DATA_HOME/groupsync-go/default.db.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = filepath.Join(DefaultDataDir(), "default.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	// WAL for better concurrent read performance; busy_timeout so parallel
	// sync attempts queue on the write lock instead of failing.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
