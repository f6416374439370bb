package chunk

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/chatvault/chatvault/internal/store"
)

// ChunkAll re-chunks every conversation listed in conversationIDs with
// the given parameters, bounding concurrency with
// golang.org/x/sync/errgroup.SetLimit so a large vault does not open more
// connections than the store's single-writer discipline can serve
// (spec.md §5 "Concurrency").
func ChunkAll(ctx context.Context, s *store.Store, conversationIDs []string, targetSize, overlap, parallelism int) error {
	if parallelism <= 0 {
		parallelism = 4
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for _, id := range conversationIDs {
		id := id
		g.Go(func() error {
			_, messages, err := s.GetConversation(ctx, id)
			if err != nil {
				return err
			}
			chunks, err := Chunk(id, messages, targetSize, overlap)
			if err != nil {
				return err
			}
			return s.ReplaceChunks(ctx, id, chunks, targetSize, overlap)
		})
	}
	return g.Wait()
}
