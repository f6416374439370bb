// Command chatvault is the CLI surface over internal/store,
// internal/ingest, internal/search, internal/export, internal/chunk, and
// internal/jobs, following the teacher's own cmd/bd entrypoint: a cobra
// root command, a signal-aware root context installed in
// PersistentPreRun, and leaf commands that open the store themselves
// rather than threading it through a shared global.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/config"
)

var (
	dbPath     string
	cacheDir   string
	addr       string
	configPath string

	rootCtx context.Context
)

// Exit codes per spec.md §6.
const (
	exitSuccess       = 0
	exitArgumentErr   = 1
	exitParseErr      = 2
	exitIOErr         = 3
	exitSubprocessErr = 4
)

var rootCmd = &cobra.Command{
	Use:   "chatvault",
	Short: "chatvault - archive, index, and transform exported AI conversations",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		rootCtx = ctx
		cmd.SetContext(ctx)
		_ = cancel // cancellation happens on signal; nothing else owns it
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: from config.yaml / CHATVAULT_DB_PATH / chatvault.db)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "artifact cache directory (default: from config)")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "HTTP listen address (default: from config)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config.yaml")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(chunkCmd)
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statsCmd)
}

// resolveBootstrap layers --db/--cache-dir/--addr flag overrides on top
// of internal/config's env > config.yaml > defaults resolution.
func resolveBootstrap(cmd *cobra.Command) (config.Bootstrap, error) {
	b, err := config.LoadBootstrap(configPath)
	if err != nil {
		return config.Bootstrap{}, err
	}
	if cmd.Flags().Changed("db") {
		b.DBPath = dbPath
	}
	if cmd.Flags().Changed("cache-dir") {
		b.CacheDir = cacheDir
	}
	if cmd.Flags().Changed("addr") {
		b.Addr = addr
	}
	return b, nil
}

func fail(code int, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "chatvault: "+format+"\n", args...)
	os.Exit(code)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(exitArgumentErr)
	}
}
