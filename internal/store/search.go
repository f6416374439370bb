package store

import (
	"context"
	"strings"

	"github.com/chatvault/chatvault/internal/types"
)

// SearchHit is one ranked message match, with enough conversation context
// to render a result line (spec.md §4.5).
type SearchHit struct {
	Message          types.Message
	ConversationID   string
	ConversationName string
	Rank             float64
}

// Search runs the query against the full-text index, ranked by bm25.
// Per spec.md §9 Design Notes, a query FTS5 cannot parse (unbalanced
// quotes, a bare NOT, etc.) falls back to a plain substring LIKE scan
// rather than surfacing a syntax error to the user.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 50
	}

	hits, err := s.searchFTS(ctx, query, limit)
	if err != nil {
		return s.searchSubstring(ctx, query, limit)
	}
	return hits, nil
}

func (s *Store) searchFTS(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	rows, err := s.ro.QueryContext(ctx, `
		SELECT m.id, m.conversation_id, m.role, m.content_type, m.content_text, m.created_at,
		       m.turn_index, m.parent_id, m.text_hash, c.title, bm25(messages_fts) AS rank
		FROM messages_fts
		JOIN messages m ON m.rowid = messages_fts.rowid
		JOIN conversations c ON c.id = m.conversation_id
		WHERE messages_fts MATCH ? AND c.ingested_at IS NOT NULL
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchHit
	for rows.Next() {
		var hit SearchHit
		var role, contentType string
		if err := rows.Scan(
			&hit.Message.ID, &hit.ConversationID, &role, &contentType, &hit.Message.ContentText,
			&hit.Message.CreatedAt, &hit.Message.TurnIndex, &hit.Message.ParentID, &hit.Message.TextHash,
			&hit.ConversationName, &hit.Rank,
		); err != nil {
			return nil, err
		}
		hit.Message.Role = types.Role(role)
		hit.Message.ContentType = types.ContentType(contentType)
		hit.Message.ConversationID = hit.ConversationID
		out = append(out, hit)
	}
	return out, rows.Err()
}

// searchSubstring is the FTS-parse-failure fallback: a case-insensitive
// LIKE scan with no ranking beyond "most recent first".
func (s *Store) searchSubstring(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	pattern := "%" + strings.ReplaceAll(query, "%", "") + "%"
	rows, err := s.ro.QueryContext(ctx, `
		SELECT m.id, m.conversation_id, m.role, m.content_type, m.content_text, m.created_at,
		       m.turn_index, m.parent_id, m.text_hash, c.title
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.content_text LIKE ? ESCAPE '\' AND c.ingested_at IS NOT NULL
		ORDER BY m.created_at DESC
		LIMIT ?
	`, pattern, limit)
	if err != nil {
		return nil, wrapDBError("substring search", err)
	}
	defer rows.Close()

	var out []SearchHit
	for rows.Next() {
		var hit SearchHit
		var role, contentType string
		if err := rows.Scan(
			&hit.Message.ID, &hit.ConversationID, &role, &contentType, &hit.Message.ContentText,
			&hit.Message.CreatedAt, &hit.Message.TurnIndex, &hit.Message.ParentID, &hit.Message.TextHash,
			&hit.ConversationName,
		); err != nil {
			return nil, wrapDBError("scan substring hit", err)
		}
		hit.Message.Role = types.Role(role)
		hit.Message.ContentType = types.ContentType(contentType)
		hit.Message.ConversationID = hit.ConversationID
		out = append(out, hit)
	}
	return out, rows.Err()
}
