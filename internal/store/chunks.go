package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chatvault/chatvault/internal/types"
)

// ReplaceChunks deletes every existing chunk for conversationID and
// inserts the new set in one transaction, making re-chunking with a
// different target_size/overlap idempotent rather than additive
// (spec.md §4.4: "re-chunking a Conversation replaces its prior Chunks").
func (s *Store) ReplaceChunks(ctx context.Context, conversationID string, chunks []types.Chunk, targetSize, overlap int) error {
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

		if _, err := conn.ExecContext(ctx, `DELETE FROM chunks WHERE conversation_id = ?`, conversationID); err != nil {
			return fmt.Errorf("delete prior chunks: %w", err)
		}

		stmt, err := conn.PrepareContext(ctx, `
			INSERT INTO chunks (id, conversation_id, start_turn, end_turn, text, text_hash, target_size, overlap)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare chunk insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range chunks {
			if _, err := stmt.ExecContext(ctx,
				c.ID, conversationID, c.StartTurn, c.EndTurn, c.Text, c.TextHash, targetSize, overlap,
			); err != nil {
				return fmt.Errorf("insert chunk %s: %w", c.ID, err)
			}
		}

		if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		committed = true
		return nil
	})
}

// ListChunks returns every chunk for a conversation, ordered by turn range.
func (s *Store) ListChunks(ctx context.Context, conversationID string) ([]types.Chunk, error) {
	rows, err := s.ro.QueryContext(ctx, `
		SELECT id, conversation_id, start_turn, end_turn, text, text_hash
		FROM chunks WHERE conversation_id = ? ORDER BY start_turn
	`, conversationID)
	if err != nil {
		return nil, wrapDBError("list chunks", err)
	}
	defer rows.Close()

	var out []types.Chunk
	for rows.Next() {
		var c types.Chunk
		if err := rows.Scan(&c.ID, &c.ConversationID, &c.StartTurn, &c.EndTurn, &c.Text, &c.TextHash); err != nil {
			return nil, wrapDBError("scan chunk", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ChunkingParams reports the target_size/overlap a conversation was last
// chunked with, used to decide whether a re-chunk request actually
// changes anything (spec.md §4.4 idempotence note).
func (s *Store) ChunkingParams(ctx context.Context, conversationID string) (targetSize, overlap int, ok bool, err error) {
	row := s.ro.QueryRowContext(ctx, `
		SELECT target_size, overlap FROM chunks WHERE conversation_id = ? LIMIT 1
	`, conversationID)
	if scanErr := row.Scan(&targetSize, &overlap); scanErr != nil {
		if isNotFound(wrapDBError("chunking params", scanErr)) {
			return 0, 0, false, nil
		}
		return 0, 0, false, wrapDBError("chunking params", scanErr)
	}
	return targetSize, overlap, true, nil
}
