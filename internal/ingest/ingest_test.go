package ingest

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chatvault/chatvault/internal/store"
)

const twoConversationArchive = `[
	{
		"id": "c1",
		"title": "first",
		"create_time": 1,
		"update_time": 1,
		"current_node": "c1-assistant",
		"mapping": {
			"c1-root": {"id": "c1-root", "parent": "", "children": ["c1-user"], "message": null},
			"c1-user": {"id": "c1-user", "parent": "c1-root", "children": ["c1-assistant"], "message": {"id": "c1-user", "author": {"role": "user"}, "create_time": 1, "content": {"content_type": "text", "parts": ["hi"]}}},
			"c1-assistant": {"id": "c1-assistant", "parent": "c1-user", "children": [], "message": {"id": "c1-assistant", "author": {"role": "assistant"}, "create_time": 2, "content": {"content_type": "text", "parts": ["hello"]}}}
		}
	},
	{
		"id": "c2",
		"title": "second",
		"create_time": 1,
		"update_time": 1,
		"current_node": "c2-assistant",
		"mapping": {
			"c2-root": {"id": "c2-root", "parent": "", "children": ["c2-user"], "message": null},
			"c2-user": {"id": "c2-user", "parent": "c2-root", "children": ["c2-assistant"], "message": {"id": "c2-user", "author": {"role": "user"}, "create_time": 1, "content": {"content_type": "text", "parts": ["ping"]}}},
			"c2-assistant": {"id": "c2-assistant", "parent": "c2-user", "children": [], "message": {"id": "c2-assistant", "author": {"role": "assistant"}, "create_time": 2, "content": {"content_type": "text", "parts": ["pong"]}}}
		}
	}
]`

func writeArchive(t *testing.T, conversationsJSON string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.zip")

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("conversations.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(conversationsJSON))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return path
}

func TestIngestBasicArchive(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, ":memory:", nil)
	require.NoError(t, err)
	defer s.Close()

	ing := New(s, nil)
	archive := writeArchive(t, twoConversationArchive)

	report, err := ing.Ingest(ctx, archive, false)
	require.NoError(t, err)
	require.Equal(t, 2, report.ConversationsAdded)
	require.Equal(t, 4, report.MessagesAdded)
	require.Equal(t, 0, report.Skipped)

	hits, err := s.Search(ctx, "hello", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "c1", hits[0].ConversationID)
}

func TestIngestDeduplicatesWithoutForce(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, ":memory:", nil)
	require.NoError(t, err)
	defer s.Close()

	ing := New(s, nil)
	archive := writeArchive(t, twoConversationArchive)

	_, err = ing.Ingest(ctx, archive, false)
	require.NoError(t, err)

	report, err := ing.Ingest(ctx, archive, false)
	require.NoError(t, err)
	require.Equal(t, 0, report.ConversationsAdded)
	require.Equal(t, 2, report.Skipped)

	convs, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 2)
}

const conflictingMessageIDArchive = `[
	{
		"id": "c1",
		"title": "first",
		"create_time": 1,
		"update_time": 1,
		"current_node": "c1-assistant",
		"mapping": {
			"c1-root": {"id": "c1-root", "parent": "", "children": ["c1-user"], "message": null},
			"c1-user": {"id": "c1-user", "parent": "c1-root", "children": ["c1-assistant"], "message": {"id": "c1-user", "author": {"role": "user"}, "create_time": 1, "content": {"content_type": "text", "parts": ["hi"]}}},
			"c1-assistant": {"id": "c1-assistant", "parent": "c1-user", "children": [], "message": {"id": "c1-assistant", "author": {"role": "assistant"}, "create_time": 2, "content": {"content_type": "text", "parts": ["hello"]}}}
		}
	},
	{
		"id": "c2",
		"title": "second",
		"create_time": 1,
		"update_time": 1,
		"current_node": "c2-assistant",
		"mapping": {
			"c2-root": {"id": "c2-root", "parent": "", "children": ["c2-user"], "message": null},
			"c2-user": {"id": "c2-user", "parent": "c2-root", "children": ["c2-assistant"], "message": {"id": "c2-user", "author": {"role": "user"}, "create_time": 1, "content": {"content_type": "text", "parts": ["ping"]}}},
			"c2-assistant": {"id": "c2-assistant", "parent": "c2-user", "children": [], "message": {"id": "c1-assistant", "author": {"role": "assistant"}, "create_time": 2, "content": {"content_type": "text", "parts": ["pong"]}}}
		}
	}
]`

func TestIngestContinuesPastAFailedConversation(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, ":memory:", nil)
	require.NoError(t, err)
	defer s.Close()

	ing := New(s, nil)
	archive := writeArchive(t, conflictingMessageIDArchive)

	report, err := ing.Ingest(ctx, archive, false)
	require.NoError(t, err)
	require.Equal(t, 1, report.ConversationsAdded, "c1 should persist even though c2 fails")
	require.Equal(t, 1, report.FailedRecords)
	require.Len(t, report.Diagnostics, 1)
	require.Equal(t, "c2", report.Diagnostics[0].ID)

	convs, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	require.Equal(t, "c1", convs[0].ID)
}

func TestIngestForceReplacesExisting(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, ":memory:", nil)
	require.NoError(t, err)
	defer s.Close()

	ing := New(s, nil)
	archive := writeArchive(t, twoConversationArchive)

	_, err = ing.Ingest(ctx, archive, false)
	require.NoError(t, err)

	report, err := ing.Ingest(ctx, archive, true)
	require.NoError(t, err)
	require.Equal(t, 2, report.ConversationsAdded)
	require.Equal(t, 0, report.Skipped)

	convs, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 2)
}
