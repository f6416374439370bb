package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/chatvault/chatvault/internal/types"
)

// ExistingConversation reports the raw_hash and ingest-completion state of
// a previously-persisted conversation row, or ok=false if none exists.
type ExistingConversation struct {
	RawHash    string
	IngestedAt *int64
}

// LookupConversation returns the dedup-relevant state of conversation id,
// without loading its messages.
func (s *Store) LookupConversation(ctx context.Context, id string) (ExistingConversation, bool, error) {
	var existing ExistingConversation
	err := s.ro.QueryRowContext(ctx,
		`SELECT raw_hash, ingested_at FROM conversations WHERE id = ?`, id,
	).Scan(&existing.RawHash, &existing.IngestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ExistingConversation{}, false, nil
	}
	if err != nil {
		return ExistingConversation{}, false, wrapDBError("lookup conversation", err)
	}
	return existing, true, nil
}

// ReplaceConversation deletes any prior rows for conv.ID (cascading to
// messages) and inserts conv and its messages in a single transaction,
// leaving ingested_at NULL until every row is written so a crash
// mid-transaction is visible as an abandoned ingest on restart (spec.md §9).
//
// Per spec.md §4.2, each conversation is ingested in its own transaction;
// FTS rows are populated by the messages_ai trigger within that same
// transaction, so a rollback also rolls back the FTS index.
func (s *Store) ReplaceConversation(ctx context.Context, conv types.Conversation, messages []types.Message) error {
	return s.withRetryingConn(ctx, func(conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		committed := false
		defer func() {
			if !committed {
				_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
			}
		}()

		if _, err := conn.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, conv.ID); err != nil {
			return fmt.Errorf("delete prior conversation rows: %w", err)
		}

		if _, err := conn.ExecContext(ctx, `
			INSERT INTO conversations
				(id, title, created_at, updated_at, message_count, default_model_slug, gizmo_id, raw_hash, ingested_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)
		`, conv.ID, conv.Title, conv.CreatedAt, conv.UpdatedAt, len(messages), conv.DefaultModelSlug, conv.GizmoID, conv.RawHash); err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}

		stmt, err := conn.PrepareContext(ctx, `
			INSERT INTO messages
				(id, conversation_id, role, content_type, content_text, created_at, turn_index, parent_id, text_hash)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare message insert: %w", err)
		}
		defer stmt.Close()

		for _, m := range messages {
			if _, err := stmt.ExecContext(ctx,
				m.ID, conv.ID, string(m.Role), string(m.ContentType), m.ContentText,
				m.CreatedAt, m.TurnIndex, m.ParentID, m.TextHash,
			); err != nil {
				return fmt.Errorf("insert message %s (turn %d): %w", m.ID, m.TurnIndex, err)
			}
		}

		now := time.Now().Unix()
		if _, err := conn.ExecContext(ctx, `UPDATE conversations SET ingested_at = ? WHERE id = ?`, now, conv.ID); err != nil {
			return fmt.Errorf("mark conversation ingested: %w", err)
		}

		if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		committed = true
		return nil
	})
}

// DeleteAbandonedConversations removes every conversation row left with
// ingested_at IS NULL — the sentinel for a crash mid-transaction (spec.md
// §9 Open Question). Returns the IDs removed, so callers can log which
// conversations will be re-ingested on the next pass over the archive.
func (s *Store) DeleteAbandonedConversations(ctx context.Context) ([]string, error) {
	rows, err := s.rw.QueryContext(ctx, `SELECT id FROM conversations WHERE ingested_at IS NULL`)
	if err != nil {
		return nil, wrapDBError("query abandoned conversations", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, wrapDBError("scan abandoned conversation", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, wrapDBError("iterate abandoned conversations", err)
	}
	rows.Close()

	for _, id := range ids {
		if _, err := s.rw.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id); err != nil {
			return nil, wrapDBError("delete abandoned conversation", err)
		}
	}
	return ids, nil
}

// withRetryingConn runs fn against a dedicated connection from the
// read-write handle, retrying the whole attempt with exponential backoff
// when SQLite reports the database as busy. A dedicated connection is
// required because the raw "BEGIN IMMEDIATE"/"COMMIT" statements must
// land on the same connection database/sql's pool would otherwise spread
// across (internal/storage/sqlite/queries.go documents the same
// constraint for the teacher's own CreateIssue transaction).
//
// Retry uses cenkalti/backoff/v4, the same library the teacher depends on
// for retryable storage operations (internal/storage/dolt/store.go).
func (s *Store) withRetryingConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	return backoff.Retry(func() error {
		conn, err := s.rw.Conn(ctx)
		if err != nil {
			return fmt.Errorf("acquire connection: %w", err)
		}
		defer conn.Close()

		err = fn(conn)
		if err != nil && isBusy(err) {
			return err // retryable
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, b)
}

func isBusy(err error) bool {
	return strings.Contains(err.Error(), "SQLITE_BUSY") || strings.Contains(err.Error(), "database is locked")
}
