// Package store implements the embedded, single-file relational store
// described in spec.md §4.3: a read-write handle for ingestion and jobs,
// a read-only handle for queries, write-ahead journaling, and an FTS5
// index kept in sync with the messages table via triggers.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/chatvault/chatvault/internal/storelib"
)

// Store is the dual-handle embedded database described in spec.md §4.3.
// Writes (ingestion, chunking, job transitions) go through rw; all read
// paths (list/get/search/stats) go through ro so a long-running query
// never blocks a writer and vice versa.
type Store struct {
	rw     *sql.DB
	ro     *sql.DB
	path   string
	logger *slog.Logger
}

// Open creates the database file (and parent directory) if needed, runs
// pending migrations on the read-write handle, and returns a Store with
// both handles ready. Mirrors the teacher's
// internal/storage/factory.Options{ReadOnly bool} split, but here both
// handles always point at the same file and are opened together, since
// this module has no remote-daemon guard to route around.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	rw, err := sql.Open("sqlite", storelib.ConnString(path, false))
	if err != nil {
		return nil, fmt.Errorf("open read-write handle: %w", err)
	}
	// A single writer connection serializes SQLite write transactions
	// naturally, following the teacher's note in queries.go about
	// modernc.org/sqlite's BeginTx always using DEFERRED mode.
	rw.SetMaxOpenConns(1)

	if _, err := rw.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		rw.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := rw.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		rw.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := runMigrations(rw); err != nil {
		rw.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	ro, err := sql.Open("sqlite", storelib.ConnString(path, true))
	if err != nil {
		rw.Close()
		return nil, fmt.Errorf("open read-only handle: %w", err)
	}

	return &Store{rw: rw, ro: ro, path: path, logger: logger}, nil
}

// Close releases both database handles.
func (s *Store) Close() error {
	roErr := s.ro.Close()
	rwErr := s.rw.Close()
	if rwErr != nil {
		return rwErr
	}
	return roErr
}

// Path returns the filesystem path the store was opened against.
func (s *Store) Path() string {
	return s.path
}
