package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/export"
	"github.com/chatvault/chatvault/internal/store"
)

var (
	exportRedact bool
	exportOut    string
	exportSince  string
	exportID     string
)

var exportCmd = &cobra.Command{
	Use:       "export markdown|jsonl|pairs|obsidian",
	Short:     "export ingested conversations in one of four deterministic formats",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"markdown", "jsonl", "pairs", "obsidian"},
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBootstrap(cmd)
		if err != nil {
			fail(exitArgumentErr, "%v", err)
		}
		since, err := parseSince(exportSince)
		if err != nil {
			fail(exitParseErr, "--since: %v", err)
		}

		s, err := store.Open(rootCtx, b.DBPath, nil)
		if err != nil {
			fail(exitIOErr, "open store: %v", err)
		}
		defer s.Close()

		opts := export.Options{Redact: exportRedact, Since: since}

		switch args[0] {
		case "markdown":
			runExportMarkdown(s, opts)
		case "jsonl":
			runExportJSONL(s, opts)
		case "pairs":
			runExportPairs(s, opts)
		case "obsidian":
			runExportObsidian(s, opts)
		default:
			fail(exitArgumentErr, "unknown export format %q", args[0])
		}
	},
}

func init() {
	exportCmd.Flags().BoolVar(&exportRedact, "redact", false, "apply redaction before export")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (file for markdown/jsonl/pairs, directory for obsidian)")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "only export conversations updated since this phrase")
	exportCmd.Flags().StringVar(&exportID, "id", "", "conversation id (required for markdown)")
}

func openOutput() (*os.File, func(), error) {
	if exportOut == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(exportOut)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func runExportMarkdown(s *store.Store, opts export.Options) {
	if exportID == "" {
		fail(exitArgumentErr, "markdown export requires --id")
	}
	doc, err := export.ConversationDocument(rootCtx, s, exportID, opts)
	if err != nil {
		fail(exitIOErr, "export: %v", err)
	}
	f, closeFn, err := openOutput()
	if err != nil {
		fail(exitIOErr, "open output: %v", err)
	}
	defer closeFn()
	fmt.Fprintln(f, doc)
}

func runExportJSONL(s *store.Store, opts export.Options) {
	f, closeFn, err := openOutput()
	if err != nil {
		fail(exitIOErr, "open output: %v", err)
	}
	defer closeFn()
	if err := export.BulkJSONL(rootCtx, s, f, opts); err != nil {
		fail(exitIOErr, "export: %v", err)
	}
}

func runExportPairs(s *store.Store, opts export.Options) {
	pairs, err := export.BulkTrainingPairs(rootCtx, s, opts)
	if err != nil {
		fail(exitIOErr, "export: %v", err)
	}
	f, closeFn, err := openOutput()
	if err != nil {
		fail(exitIOErr, "open output: %v", err)
	}
	defer closeFn()
	enc := json.NewEncoder(f)
	for _, p := range pairs {
		if err := enc.Encode(p); err != nil {
			fail(exitIOErr, "export: %v", err)
		}
	}
}

func runExportObsidian(s *store.Store, opts export.Options) {
	dir := exportOut
	if dir == "" {
		dir = "vault"
	}
	n, err := export.VaultDirectory(rootCtx, s, dir, opts)
	if err != nil {
		fail(exitIOErr, "export: %v", err)
	}
	fmt.Printf("wrote %d documents to %s\n", n, dir)
}
