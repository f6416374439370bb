package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/search"
	"github.com/chatvault/chatvault/internal/store"
)

var (
	searchLimit int
	searchSince string
	searchWatch bool
)

var timeParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseSince turns a natural-language phrase like "2 weeks ago" into a
// unix timestamp, the teacher's own github.com/olebedev/when dependency
// standing in for requiring RFC3339 input (spec.md §6 "Natural-language
// time filters").
func parseSince(phrase string) (int64, error) {
	if phrase == "" {
		return 0, nil
	}
	result, err := timeParser.Parse(phrase, time.Now())
	if err != nil {
		return 0, err
	}
	if result == nil {
		return 0, fmt.Errorf("could not parse time phrase %q", phrase)
	}
	return result.Time.Unix(), nil
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "full-text search over ingested conversations",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBootstrap(cmd)
		if err != nil {
			fail(exitArgumentErr, "%v", err)
		}

		since, err := parseSince(searchSince)
		if err != nil {
			fail(exitParseErr, "--since: %v", err)
		}

		s, err := store.Open(rootCtx, b.DBPath, nil)
		if err != nil {
			fail(exitIOErr, "open store: %v", err)
		}
		defer s.Close()

		opts := search.Options{Query: args[0], Since: since, Limit: searchLimit}
		runSearchOnce(s, opts)

		if searchWatch {
			watchAndResearch(rootCtx, b.DBPath, s, opts)
		}
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum results")
	searchCmd.Flags().StringVar(&searchSince, "since", "", "only return messages created since this phrase, e.g. \"2 weeks ago\"")
	searchCmd.Flags().BoolVar(&searchWatch, "watch", false, "keep running, re-querying whenever the database file changes")
}

func runSearchOnce(s *store.Store, opts search.Options) {
	hits, err := search.Run(rootCtx, s, opts)
	if err != nil {
		fail(exitIOErr, "search: %v", err)
	}
	for _, h := range hits {
		fmt.Printf("%.3f  %s [turn %d, %s]  %s\n", h.Rank, h.ConversationName, h.TurnIndex, h.Role, h.Snippet)
	}
}

// watchAndResearch re-runs opts against s whenever dbPath's directory
// reports a write to the database file or its WAL, following the
// debounced fsnotify loop the teacher's own `bd list --watch` uses over
// its .beads directory (cmd/bd/list.go).
func watchAndResearch(ctx context.Context, dbPath string, s *store.Store, opts search.Options) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fail(exitIOErr, "watch: %v", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(dbPath)
	if dir == "" {
		dir = "."
	}
	if err := watcher.Add(dir); err != nil {
		fail(exitIOErr, "watch: %v", err)
	}

	base := filepath.Base(dbPath)
	fmt.Fprintf(os.Stderr, "\nwatching %s for changes... (ctrl-c to exit)\n", dbPath)

	debounceDelay := 500 * time.Millisecond
	var debounceTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(event.Name)
			if name != base && !strings.HasPrefix(name, base+"-wal") {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				runSearchOnce(s, opts)
				fmt.Fprintf(os.Stderr, "\nwatching %s for changes... (ctrl-c to exit)\n", dbPath)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		}
	}
}
