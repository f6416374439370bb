package store

import (
	"context"

	"github.com/chatvault/chatvault/internal/types"
)

// GetConversation loads a conversation and all of its messages in turn
// order. Abandoned conversations (ingested_at IS NULL) are treated as
// not found, matching the invariant in spec.md §9 that a partial ingest
// is invisible to readers.
func (s *Store) GetConversation(ctx context.Context, id string) (types.Conversation, []types.Message, error) {
	convs, err := s.queryConversations(ctx, `
		SELECT id, title, created_at, updated_at, message_count, default_model_slug, gizmo_id, raw_hash, ingested_at
		FROM conversations WHERE id = ? AND ingested_at IS NOT NULL
	`, id)
	if err != nil {
		return types.Conversation{}, nil, err
	}
	if len(convs) == 0 {
		return types.Conversation{}, nil, ErrNotFound
	}

	rows, err := s.ro.QueryContext(ctx, `
		SELECT id, conversation_id, role, content_type, content_text, created_at, turn_index, parent_id, text_hash
		FROM messages WHERE conversation_id = ? ORDER BY turn_index
	`, id)
	if err != nil {
		return types.Conversation{}, nil, wrapDBError("list messages", err)
	}
	defer rows.Close()

	var messages []types.Message
	for rows.Next() {
		var m types.Message
		var role, contentType string
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &contentType, &m.ContentText, &m.CreatedAt, &m.TurnIndex, &m.ParentID, &m.TextHash); err != nil {
			return types.Conversation{}, nil, wrapDBError("scan message", err)
		}
		m.Role = types.Role(role)
		m.ContentType = types.ContentType(contentType)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return types.Conversation{}, nil, wrapDBError("iterate messages", err)
	}

	return convs[0], messages, nil
}

// ListConversations returns every ingested conversation, newest first.
func (s *Store) ListConversations(ctx context.Context) ([]types.Conversation, error) {
	return s.queryConversations(ctx, `
		SELECT id, title, created_at, updated_at, message_count, default_model_slug, gizmo_id, raw_hash, ingested_at
		FROM conversations WHERE ingested_at IS NOT NULL ORDER BY updated_at DESC
	`)
}

// ListConversationsSince returns every ingested conversation updated at
// or after the given unix timestamp, used by `chatvault export --since`
// (spec.md §5).
func (s *Store) ListConversationsSince(ctx context.Context, since int64) ([]types.Conversation, error) {
	return s.queryConversations(ctx, `
		SELECT id, title, created_at, updated_at, message_count, default_model_slug, gizmo_id, raw_hash, ingested_at
		FROM conversations WHERE ingested_at IS NOT NULL AND updated_at >= ? ORDER BY updated_at DESC
	`, since)
}

// ConversationFilter narrows ListConversationsFiltered's result set for
// the `GET /api/conversations` collaborator contract (spec.md §6).
type ConversationFilter struct {
	Search  string
	GizmoID string
	Limit   int
	Offset  int
}

// ListConversationsFiltered applies ConversationFilter on top of
// ListConversations's ordering, for HTTP callers that paginate and
// search rather than read the whole table.
func (s *Store) ListConversationsFiltered(ctx context.Context, f ConversationFilter) ([]types.Conversation, error) {
	query := `
		SELECT id, title, created_at, updated_at, message_count, default_model_slug, gizmo_id, raw_hash, ingested_at
		FROM conversations WHERE ingested_at IS NOT NULL
	`
	var args []any
	if f.Search != "" {
		query += " AND title LIKE ?"
		args = append(args, "%"+f.Search+"%")
	}
	if f.GizmoID != "" {
		query += " AND gizmo_id = ?"
		args = append(args, f.GizmoID)
	}
	query += " ORDER BY updated_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, f.Offset)
		}
	}
	return s.queryConversations(ctx, query, args...)
}

func (s *Store) queryConversations(ctx context.Context, query string, args ...any) ([]types.Conversation, error) {
	rows, err := s.ro.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("query conversations", err)
	}
	defer rows.Close()

	var out []types.Conversation
	for rows.Next() {
		var c types.Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt, &c.MessageCount, &c.DefaultModelSlug, &c.GizmoID, &c.RawHash, &c.IngestedAt); err != nil {
			return nil, wrapDBError("scan conversation", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
