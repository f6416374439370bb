// Package search is the caller-facing entry point for full-text search:
// it applies the --since time filter, enforces the result limit, and
// formats hits for the CLI and HTTP layers, delegating the actual bm25
// query and substring fallback to internal/store (spec.md §4.5).
package search

import (
	"context"
	"fmt"

	"github.com/chatvault/chatvault/internal/store"
)

// Options controls one search call.
type Options struct {
	Query string
	Since int64 // unix seconds; 0 means no lower bound
	Limit int
}

// Hit is a formatted search result ready for display.
type Hit struct {
	ConversationID   string
	ConversationName string
	TurnIndex        int
	Role             string
	Snippet          string
	Rank             float64
}

// Run executes a search against s, post-filtering by Since when set.
func Run(ctx context.Context, s *store.Store, opts Options) ([]Hit, error) {
	if opts.Query == "" {
		return nil, fmt.Errorf("search: query must not be empty")
	}

	limit := opts.Limit
	if opts.Since > 0 {
		// Over-fetch before filtering by time, since the FTS ranking
		// itself has no notion of recency.
		limit = limit * 4
	}

	raw, err := s.Search(ctx, opts.Query, limit)
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for _, r := range raw {
		if opts.Since > 0 && r.Message.CreatedAt < opts.Since {
			continue
		}
		hits = append(hits, Hit{
			ConversationID:   r.ConversationID,
			ConversationName: r.ConversationName,
			TurnIndex:        r.Message.TurnIndex,
			Role:             string(r.Message.Role),
			Snippet:          snippet(r.Message.ContentText),
			Rank:             r.Rank,
		})
		if opts.Limit > 0 && len(hits) >= opts.Limit {
			break
		}
	}
	return hits, nil
}

func snippet(text string) string {
	const max = 240
	if len(text) <= max {
		return text
	}
	return text[:max] + "…"
}
