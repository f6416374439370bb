package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/require"

	"github.com/chatvault/chatvault/internal/pattern"
	"github.com/chatvault/chatvault/internal/store"
	"github.com/chatvault/chatvault/internal/types"
)

func fakeAnthropicServer(t *testing.T, responseText string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "msg_test",
			"type":  "message",
			"role":  "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": []map[string]any{
				{"type": "text", "text": responseText},
			},
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 20},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newTestRunner builds a Runner whose Anthropic client is pointed at a
// local fake server, so Run() never makes a real network call in tests.
func newTestRunner(t *testing.T, s *store.Store, responseText string) *Runner {
	t.Helper()
	srv := fakeAnthropicServer(t, responseText)
	catalog := pattern.NewCatalog(t.TempDir())
	cacheDir := t.TempDir()

	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	r, err := NewRunner(s, catalog, "", WithCacheDir(cacheDir))
	require.NoError(t, err)

	r.client = anthropic.NewClient(option.WithAPIKey("test-key"), option.WithBaseURL(srv.URL))
	return r
}

func TestRunCompletesConversationJobAndWritesArtifact(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	conv := types.Conversation{ID: "conv-1", Title: "Test", RawHash: "h1"}
	messages := []types.Message{
		{ID: "m1", ConversationID: "conv-1", Role: types.RoleUser, ContentType: types.ContentText, ContentText: "hello", TurnIndex: 0, TextHash: "t1"},
	}
	require.NoError(t, s.ReplaceConversation(ctx, conv, messages))

	job := types.Job{
		ID:        "job-1",
		Type:      types.JobTypeConversation,
		TargetID:  "conv-1",
		Pattern:   types.PatternSummarize,
		Status:    types.JobPending,
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.CreateJob(ctx, job))

	r := newTestRunner(t, s, "This is the summary.")
	require.NoError(t, r.Run(ctx, job.ID))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, types.JobDone, got.Status)
	require.FileExists(t, got.ResultPath)

	data, err := os.ReadFile(got.ResultPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "This is the summary.")
}

func TestRunFailsJobWhenTargetMissing(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	job := types.Job{
		ID:        "job-missing",
		Type:      types.JobTypeConversation,
		TargetID:  "does-not-exist",
		Pattern:   types.PatternSummarize,
		Status:    types.JobPending,
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.CreateJob(ctx, job))

	r := newTestRunner(t, s, "unused")
	err = r.Run(ctx, job.ID)
	require.Error(t, err)

	got, getErr := s.GetJob(ctx, job.ID)
	require.NoError(t, getErr)
	require.Equal(t, types.JobFailed, got.Status)
	require.NotEmpty(t, got.Error)
}

func TestWriteArtifactPath(t *testing.T) {
	r := &Runner{cacheDir: t.TempDir()}
	job := types.Job{ID: "job-x"}
	path, err := r.writeArtifact(job, "content")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(r.cacheDir, "job-x.md"), path)
}
