// Package store persists projects, people, patches, checks and bundles in
// SQLite. The schema is bootstrapped on open and the default patch states
// are seeded so a fresh database is immediately usable.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite handle. All methods are safe for concurrent use;
// SQLite serializes writers and WAL keeps readers unblocked.
type Store struct {
	db *sql.DB
}

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = fmt.Errorf("store: not found")

// Open opens (creating if needed) the database at path and bootstraps the
// schema and default states.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: creating %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		linkname TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		listid TEXT NOT NULL,
		listemail TEXT NOT NULL,
		web_url TEXT NOT NULL DEFAULT '',
		scm_url TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS people (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS states (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		ordering INTEGER NOT NULL,
		action_required INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS patches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL REFERENCES projects(id),
		msgid TEXT NOT NULL,
		name TEXT NOT NULL,
		date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		submitter_id INTEGER NOT NULL REFERENCES people(id),
		delegate_id INTEGER REFERENCES people(id),
		state_id INTEGER NOT NULL REFERENCES states(id),
		hash TEXT NOT NULL DEFAULT '',
		commit_ref TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		diff TEXT NOT NULL DEFAULT '',
		UNIQUE (project_id, msgid)
	);
	CREATE INDEX IF NOT EXISTS idx_patches_hash ON patches(hash);
	CREATE INDEX IF NOT EXISTS idx_patches_project ON patches(project_id);

	CREATE TABLE IF NOT EXISTS checks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patch_id INTEGER NOT NULL REFERENCES patches(id),
		user_id INTEGER NOT NULL REFERENCES accounts(id),
		date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		state TEXT NOT NULL,
		target_url TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		context TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_checks_patch ON checks(patch_id);

	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL,
		is_superuser INTEGER NOT NULL DEFAULT 0,
		token TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS maintainers (
		project_id INTEGER NOT NULL REFERENCES projects(id),
		account_id INTEGER NOT NULL REFERENCES accounts(id),
		PRIMARY KEY (project_id, account_id)
	);

	CREATE TABLE IF NOT EXISTS bundles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL REFERENCES accounts(id),
		project_id INTEGER NOT NULL REFERENCES projects(id),
		name TEXT NOT NULL,
		public INTEGER NOT NULL DEFAULT 0,
		UNIQUE (owner_id, name)
	);

	CREATE TABLE IF NOT EXISTS bundle_patches (
		bundle_id INTEGER NOT NULL REFERENCES bundles(id),
		patch_id INTEGER NOT NULL REFERENCES patches(id),
		ordering INTEGER NOT NULL,
		PRIMARY KEY (bundle_id, patch_id)
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("store: initializing schema: %w", err)
	}

	return s.seedStates()
}

// defaultStates mirror the stock patch lifecycle, in workflow order.
var defaultStates = []struct {
	name           string
	actionRequired bool
}{
	{"New", true},
	{"Under Review", true},
	{"Accepted", false},
	{"Rejected", false},
	{"RFC", false},
	{"Not Applicable", false},
	{"Changes Requested", false},
	{"Awaiting Upstream", false},
	{"Superseded", false},
	{"Deferred", false},
}

func (s *Store) seedStates() error {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM states`).Scan(&n); err != nil {
		return fmt.Errorf("store: counting states: %w", err)
	}
	if n > 0 {
		return nil
	}

	for i, st := range defaultStates {
		_, err := s.db.Exec(
			`INSERT INTO states (name, ordering, action_required) VALUES (?, ?, ?)`,
			st.name, i, st.actionRequired)
		if err != nil {
			return fmt.Errorf("store: seeding state %q: %w", st.name, err)
		}
	}

	return nil
}
