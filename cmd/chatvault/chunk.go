package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/chunk"
	"github.com/chatvault/chatvault/internal/config"
	"github.com/chatvault/chatvault/internal/store"
)

var (
	chunkTarget       int
	chunkOverlap      int
	chunkConversation string
	chunkParallelism  int
)

var chunkCmd = &cobra.Command{
	Use:   "chunk",
	Short: "rebuild search chunks for one or all conversations",
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBootstrap(cmd)
		if err != nil {
			fail(exitArgumentErr, "%v", err)
		}

		s, err := store.Open(rootCtx, b.DBPath, nil)
		if err != nil {
			fail(exitIOErr, "open store: %v", err)
		}
		defer s.Close()

		settings, err := config.Load(rootCtx, s)
		if err != nil {
			fail(exitIOErr, "load settings: %v", err)
		}
		target := settings.ChunkTarget
		overlap := settings.ChunkOverlap
		if cmd.Flags().Changed("target") {
			target = chunkTarget
		}
		if cmd.Flags().Changed("overlap") {
			overlap = chunkOverlap
		}

		var ids []string
		if chunkConversation != "" {
			ids = []string{chunkConversation}
		} else {
			convs, err := s.ListConversations(rootCtx)
			if err != nil {
				fail(exitIOErr, "list conversations: %v", err)
			}
			for _, c := range convs {
				ids = append(ids, c.ID)
			}
		}

		if err := chunk.ChunkAll(rootCtx, s, ids, target, overlap, chunkParallelism); err != nil {
			fail(exitIOErr, "chunk: %v", err)
		}

		fmt.Printf("chunked %d conversation(s) (target=%d overlap=%d)\n", len(ids), target, overlap)
	},
}

func init() {
	chunkCmd.Flags().IntVar(&chunkTarget, "target", 0, "chunk target size (defaults to stored setting)")
	chunkCmd.Flags().IntVar(&chunkOverlap, "overlap", 0, "chunk overlap (defaults to stored setting)")
	chunkCmd.Flags().StringVar(&chunkConversation, "conversation", "", "chunk only this conversation id")
	chunkCmd.Flags().IntVar(&chunkParallelism, "parallelism", 4, "maximum concurrent chunking workers")
}
