package store

import "context"

// Stats is the summary `chatvault stats` prints (spec.md §5): totals
// across conversations, messages, chunks, projects, and jobs by status.
type Stats struct {
	Conversations int
	Messages      int
	Chunks        int
	Projects      int
	JobsByStatus  map[string]int
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	stats.JobsByStatus = map[string]int{}

	if err := s.ro.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE ingested_at IS NOT NULL`).Scan(&stats.Conversations); err != nil {
		return Stats{}, wrapDBError("count conversations", err)
	}
	if err := s.ro.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages m JOIN conversations c ON c.id = m.conversation_id WHERE c.ingested_at IS NOT NULL
	`).Scan(&stats.Messages); err != nil {
		return Stats{}, wrapDBError("count messages", err)
	}
	if err := s.ro.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&stats.Chunks); err != nil {
		return Stats{}, wrapDBError("count chunks", err)
	}
	if err := s.ro.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&stats.Projects); err != nil {
		return Stats{}, wrapDBError("count projects", err)
	}

	rows, err := s.ro.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return Stats{}, wrapDBError("count jobs by status", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, wrapDBError("scan job status count", err)
		}
		stats.JobsByStatus[status] = count
	}
	return stats, rows.Err()
}
