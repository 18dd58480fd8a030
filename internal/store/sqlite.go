// Package store provides SQLite-based persistence for the code-intelligence
// pipeline. It manages uploads, dumps, package dependencies, per-repository
// commit graphs, and named advisory locks.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const currentSchemaVersion = 1

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store represents the SQLite database store
type Store struct {
	db *sql.DB
}

// New creates a new store connection
func New(dbPath string) (*Store, error) {
	// _txlock=immediate makes transactions take the write lock at BEGIN,
	// so two connections racing through a read-then-write transaction block
	// on the busy timeout instead of failing the later write upgrade.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Initialize creates the database schema
func (s *Store) Initialize() error {
	schema := `
	-- Pending index bundles awaiting conversion
	CREATE TABLE IF NOT EXISTS uploads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		repository TEXT NOT NULL,
		commit_id TEXT NOT NULL,
		root TEXT NOT NULL DEFAULT '',
		filename TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT 'queued',
		failure_summary TEXT,
		uploaded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		started_at DATETIME
	);

	-- Converted artifacts; one per (repository, commit, root)
	CREATE TABLE IF NOT EXISTS dumps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		repository TEXT NOT NULL,
		commit_id TEXT NOT NULL,
		root TEXT NOT NULL DEFAULT '',
		visible_at_tip BOOLEAN DEFAULT FALSE,
		uploaded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(repository, commit_id, root)
	);

	-- Packages exported by a dump
	CREATE TABLE IF NOT EXISTS packages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dump_id INTEGER NOT NULL,
		scheme TEXT NOT NULL,
		name TEXT NOT NULL,
		version TEXT NOT NULL,
		FOREIGN KEY (dump_id) REFERENCES dumps(id) ON DELETE CASCADE
	);

	-- Packages referenced by a dump
	CREATE TABLE IF NOT EXISTS package_references (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dump_id INTEGER NOT NULL,
		scheme TEXT NOT NULL,
		name TEXT NOT NULL,
		version TEXT NOT NULL,
		FOREIGN KEY (dump_id) REFERENCES dumps(id) ON DELETE CASCADE
	);

	-- Per-repository commit graph (commit -> parent edges)
	CREATE TABLE IF NOT EXISTS commits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		repository TEXT NOT NULL,
		commit_id TEXT NOT NULL,
		parent_commit TEXT NOT NULL DEFAULT '',
		UNIQUE(repository, commit_id, parent_commit)
	);

	-- Named advisory locks (lease records)
	CREATE TABLE IF NOT EXISTS locks (
		name TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);

	-- Schema version tracking
	CREATE TABLE IF NOT EXISTS codeintel_schema_version (
		version INTEGER PRIMARY KEY
	);

	-- Indexes
	CREATE INDEX IF NOT EXISTS idx_uploads_state ON uploads(state, uploaded_at);
	CREATE INDEX IF NOT EXISTS idx_dumps_repository ON dumps(repository);
	CREATE INDEX IF NOT EXISTS idx_dumps_visibility ON dumps(visible_at_tip, uploaded_at);
	CREATE INDEX IF NOT EXISTS idx_packages_identity ON packages(scheme, name, version);
	CREATE INDEX IF NOT EXISTS idx_references_identity ON package_references(scheme, name, version);
	CREATE INDEX IF NOT EXISTS idx_commits_repository ON commits(repository, commit_id);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	// Mark as current schema version
	_, err = s.db.Exec("INSERT OR REPLACE INTO codeintel_schema_version (version) VALUES (?)", currentSchemaVersion)
	if err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}

	return nil
}

// DB returns the underlying database connection for advanced queries
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithTransaction runs fn inside a transaction, committing on nil error and
// rolling back otherwise.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// parseTimestamp parses a timestamp string from SQLite in various formats
func parseTimestamp(s string) time.Time {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999-07:00",
		"2006-01-02 15:04:05-07:00",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
