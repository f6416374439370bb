package store

import (
	"context"
	"database/sql"

	"github.com/chatvault/chatvault/internal/types"
)

// ProjectSummary is a Project joined with the counts spec.md §3 requires
// for a project listing: how many conversations belong to it and how
// many of those have been chunked.
type ProjectSummary struct {
	types.Project
	ConversationCount int
	ChunkedCount      int
}

// UpsertProject records or refreshes the display name for a gizmo
// encountered during ingestion. Projects are derived entirely from the
// conversations that reference them, so this is called from the ingest
// path rather than exposed as a standalone write operation.
func (s *Store) UpsertProject(ctx context.Context, p types.Project) error {
	_, err := s.rw.ExecContext(ctx, `
		INSERT INTO projects (gizmo_id, gizmo_type, display_name)
		VALUES (?, ?, ?)
		ON CONFLICT(gizmo_id) DO UPDATE SET gizmo_type = excluded.gizmo_type, display_name = excluded.display_name
	`, p.GizmoID, string(p.GizmoType), p.DisplayName)
	if err != nil {
		return wrapDBError("upsert project", err)
	}
	return nil
}

// ListProjects returns every known project along with its conversation
// and chunked-conversation counts, ordered by display name.
func (s *Store) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	rows, err := s.ro.QueryContext(ctx, `
		SELECT
			p.gizmo_id, p.gizmo_type, p.display_name,
			COUNT(DISTINCT c.id) AS conversation_count,
			COUNT(DISTINCT ch.conversation_id) AS chunked_count
		FROM projects p
		LEFT JOIN conversations c ON c.gizmo_id = p.gizmo_id AND c.ingested_at IS NOT NULL
		LEFT JOIN chunks ch ON ch.conversation_id = c.id
		GROUP BY p.gizmo_id
		ORDER BY p.display_name
	`)
	if err != nil {
		return nil, wrapDBError("list projects", err)
	}
	defer rows.Close()

	var out []ProjectSummary
	for rows.Next() {
		var ps ProjectSummary
		var gizmoType string
		if err := rows.Scan(&ps.GizmoID, &gizmoType, &ps.DisplayName, &ps.ConversationCount, &ps.ChunkedCount); err != nil {
			return nil, wrapDBError("scan project", err)
		}
		ps.GizmoType = types.GizmoType(gizmoType)
		out = append(out, ps)
	}
	return out, rows.Err()
}

// GetProject loads a single project by gizmo ID, for the conversation
// detail endpoint's project join (spec.md §6). ok is false when the
// conversation has no gizmo_id or the project row is unknown.
func (s *Store) GetProject(ctx context.Context, gizmoID string) (types.Project, bool, error) {
	if gizmoID == "" {
		return types.Project{}, false, nil
	}
	var p types.Project
	var gizmoType string
	err := s.ro.QueryRowContext(ctx, `
		SELECT gizmo_id, gizmo_type, display_name FROM projects WHERE gizmo_id = ?
	`, gizmoID).Scan(&p.GizmoID, &gizmoType, &p.DisplayName)
	if err == sql.ErrNoRows {
		return types.Project{}, false, nil
	}
	if err != nil {
		return types.Project{}, false, wrapDBError("get project", err)
	}
	p.GizmoType = types.GizmoType(gizmoType)
	return p, true, nil
}

// ListConversationsByProject returns every ingested conversation whose
// gizmo_id matches, newest first.
func (s *Store) ListConversationsByProject(ctx context.Context, gizmoID string) ([]types.Conversation, error) {
	return s.queryConversations(ctx, `
		SELECT id, title, created_at, updated_at, message_count, default_model_slug, gizmo_id, raw_hash, ingested_at
		FROM conversations WHERE gizmo_id = ? AND ingested_at IS NOT NULL ORDER BY updated_at DESC
	`, gizmoID)
}
