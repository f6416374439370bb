package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// Sentinel errors surfaced to callers regardless of the underlying driver
// error text, so the HTTP layer can map them to the taxonomy in
// spec.md §7 without re-parsing SQLite messages.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates an active-job uniqueness violation in
	// CreateJob (spec.md §3: "at most one Job ... pending/running"), or a
	// CancelJob on a job that is already in a terminal status.
	ErrConflict = errors.New("conflict")
)

// wrapDBError wraps a database error with operation context, converting
// sql.ErrNoRows to ErrNotFound for consistent error handling across the
// store's query methods.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
