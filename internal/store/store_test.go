package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chatvault/chatvault/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReplaceConversationDedupAndIngestedAt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	conv := types.Conversation{ID: "c1", Title: "hello", RawHash: "hash1", CreatedAt: 1, UpdatedAt: 1}
	messages := []types.Message{
		{ID: "m1", ConversationID: "c1", Role: types.RoleUser, ContentType: types.ContentText, ContentText: "hi", TurnIndex: 0},
		{ID: "m2", ConversationID: "c1", Role: types.RoleAssistant, ContentType: types.ContentText, ContentText: "hello there", TurnIndex: 1},
	}

	require.NoError(t, s.ReplaceConversation(ctx, conv, messages))

	got, msgs, err := s.GetConversation(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "hello", got.Title)
	require.NotNil(t, got.IngestedAt)
	require.Len(t, msgs, 2)

	existing, ok, err := s.LookupConversation(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hash1", existing.RawHash)
}

func TestDeleteAbandonedConversations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.rw.ExecContext(ctx, `
		INSERT INTO conversations (id, title, created_at, updated_at, message_count, raw_hash, ingested_at)
		VALUES ('abandoned', 't', 0, 0, 0, 'h', NULL)
	`)
	require.NoError(t, err)

	ids, err := s.DeleteAbandonedConversations(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"abandoned"}, ids)

	_, _, err = s.GetConversation(ctx, "abandoned")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestJobLifecycleRejectsDuplicateActive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := types.Job{ID: "j1", Type: types.JobTypeConversation, TargetID: "c1", Pattern: types.PatternSummarize, Status: types.JobPending, CreatedAt: time.Unix(1, 0)}
	require.NoError(t, s.CreateJob(ctx, job))

	dup := job
	dup.ID = "j2"
	err := s.CreateJob(ctx, dup)
	require.ErrorIs(t, err, ErrConflict)

	require.NoError(t, s.UpdateJobStatus(ctx, "j1", types.JobRunning, "", ""))
	require.NoError(t, s.UpdateJobProgress(ctx, "j1", types.Progress{Current: 1, Total: 2, Message: "working"}))

	loaded, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, types.JobRunning, loaded.Status)
	require.NotNil(t, loaded.Progress)
	require.Equal(t, 1, loaded.Progress.Current)

	require.NoError(t, s.UpdateJobStatus(ctx, "j1", types.JobDone, "", "/out/result.md"))

	// now that j1 is terminal, the same (target, pattern) pair can be resubmitted
	require.NoError(t, s.CreateJob(ctx, dup))
}

// TestCreateJobSerializesConcurrentSubmissionsForSameTargetAndPattern
// guards the §3 invariant that at most one job may be pending/running
// for a given (target, pattern) pair even when two Submit calls race:
// CreateJob's BEGIN IMMEDIATE transaction must serialize them so only
// one insert ever succeeds.
func TestCreateJobSerializesConcurrentSubmissionsForSameTargetAndPattern(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		i := i
		go func() {
			defer wg.Done()
			job := types.Job{
				ID:        fmt.Sprintf("race-%d", i),
				Type:      types.JobTypeConversation,
				TargetID:  "c1",
				Pattern:   types.PatternSummarize,
				Status:    types.JobPending,
				CreatedAt: time.Unix(1, 0),
			}
			errs[i] = s.CreateJob(ctx, job)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, ErrConflict)
	}
	require.Equal(t, 1, succeeded, "exactly one concurrent CreateJob call should win")

	jobs, err := s.ListJobs(ctx, "c1")
	require.NoError(t, err)
	active := 0
	for _, j := range jobs {
		if !j.Status.Terminal() {
			active++
		}
	}
	require.Equal(t, 1, active)
}

func TestSearchFallsBackToSubstringOnUnparsableQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	conv := types.Conversation{ID: "c1", Title: "t", RawHash: "h", CreatedAt: 1, UpdatedAt: 1}
	messages := []types.Message{
		{ID: "m1", ConversationID: "c1", Role: types.RoleUser, ContentType: types.ContentText, ContentText: `a "quoted fragment`, TurnIndex: 0},
	}
	require.NoError(t, s.ReplaceConversation(ctx, conv, messages))

	hits, err := s.Search(ctx, `"quoted`, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}
