// Command chatvault-worker executes a single pattern job to completion
// and exits, matching cmd/agent-controller's flag-parsing and
// signal-handling shape: a small flag set, a logger with a bracketed
// prefix, and a context cancelled on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/chatvault/chatvault/internal/config"
	"github.com/chatvault/chatvault/internal/pattern"
	"github.com/chatvault/chatvault/internal/store"
	"github.com/chatvault/chatvault/internal/worker"
)

const (
	exitSuccess       = 0
	exitArgumentErr   = 1
	exitSubprocessErr = 4
)

func main() {
	var (
		jobID      = flag.String("job-id", "", "id of the job row to execute")
		dbPath     = flag.String("db", "chatvault.db", "database path")
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		apiKey     = flag.String("api-key", "", "Anthropic API key (ANTHROPIC_API_KEY env wins if set)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[chatvault-worker] ", log.LstdFlags|log.Lmsgprefix)

	if *jobID == "" {
		logger.Fatal("--job-id is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down", sig)
		cancel()
	}()

	b, err := config.LoadBootstrap(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *dbPath != "" {
		b.DBPath = *dbPath
	}

	s, err := store.Open(ctx, b.DBPath, nil)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer s.Close()

	catalog := pattern.NewCatalog(pattern.DefaultSearchPaths()...)

	runner, err := worker.NewRunner(s, catalog, *apiKey, worker.WithCacheDir(b.CacheDir))
	if err != nil {
		logger.Printf("runner setup failed: %v", err)
		os.Exit(exitSubprocessErr)
	}

	logger.Printf("running job %s", *jobID)
	if err := runner.Run(ctx, *jobID); err != nil {
		logger.Printf("job %s failed: %v", *jobID, err)
		os.Exit(exitSubprocessErr)
	}

	logger.Printf("job %s done", *jobID)
	os.Exit(exitSuccess)
}
