package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/ingest"
	"github.com/chatvault/chatvault/internal/store"
)

var ingestForce bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <archive.zip>",
	Short: "parse and persist an exported conversation archive",
	Args:  cobra.ExactArgs(1),
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

		report, err := ingest.New(s, nil).Ingest(rootCtx, args[0], ingestForce)
		if err != nil {
			fail(exitIOErr, "ingest: %v", err)
		}

		fmt.Printf("added=%d messages=%d skipped=%d failed_records=%d\n",
			report.ConversationsAdded, report.MessagesAdded, report.Skipped, report.FailedRecords)
		for _, d := range report.Diagnostics {
			fmt.Printf("  skipped record %d (id=%s): %s\n", d.Index, d.ID, d.Reason)
		}
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "reimport conversations even if their raw_hash already matches")
}
