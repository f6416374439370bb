package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "print conversation, message, chunk, and job counts",
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

		stats, err := s.Stats(rootCtx)
		if err != nil {
			fail(exitIOErr, "stats: %v", err)
		}

		fmt.Printf("conversations=%d messages=%d chunks=%d projects=%d\n",
			stats.Conversations, stats.Messages, stats.Chunks, stats.Projects)
		for status, count := range stats.JobsByStatus {
			fmt.Printf("  jobs[%s]=%d\n", status, count)
		}
	},
}
