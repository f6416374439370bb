package parser

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeArchive(t *testing.T, conversationsJSON string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "export.zip")

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

func TestParseBranchingLinearizationFollowsCurrentNode(t *testing.T) {
	// root -> {A (ts 100), B (ts 200)}; A -> leaf. current_node = leaf.
	// Per spec.md S2, the walk must follow current_node to leaf via A,
	// never visiting B even though B has the later timestamp.
	archive := writeArchive(t, `[
		{
			"id": "conv-1",
			"title": "branching",
			"create_time": 1,
			"update_time": 2,
			"current_node": "leaf",
			"mapping": {
				"root": {"id": "root", "parent": "", "children": ["a", "b"], "message": null},
				"a": {"id": "a", "parent": "root", "children": ["leaf"], "message": {"id": "a", "author": {"role": "user"}, "create_time": 100, "content": {"content_type": "text", "parts": ["branch A"]}}},
				"b": {"id": "b", "parent": "root", "children": [], "message": {"id": "b", "author": {"role": "user"}, "create_time": 200, "content": {"content_type": "text", "parts": ["branch B"]}}},
				"leaf": {"id": "leaf", "parent": "a", "children": [], "message": {"id": "leaf", "author": {"role": "assistant"}, "create_time": 150, "content": {"content_type": "text", "parts": ["leaf reply"]}}}
			}
		}
	]`)

	result, err := Parse(archive)
	require.NoError(t, err)
	require.Empty(t, result.Diagnostics)
	require.Len(t, result.Conversations, 1)

	msgs := result.Conversations[0].Messages
	require.Len(t, msgs, 2)
	require.Equal(t, "branch A", msgs[0].ContentText)
	require.Equal(t, "leaf reply", msgs[1].ContentText)
	for _, m := range msgs {
		require.NotEqual(t, "branch B", m.ContentText)
	}
}

func TestParseBasicIngestTwoConversations(t *testing.T) {
	archive := writeArchive(t, `[
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
	]`)

	result, err := Parse(archive)
	require.NoError(t, err)
	require.Empty(t, result.Diagnostics)
	require.Len(t, result.Conversations, 2)

	total := 0
	for _, c := range result.Conversations {
		total += len(c.Messages)
		for _, m := range c.Messages {
			require.Contains(t, []int{0, 1}, m.TurnIndex)
		}
	}
	require.Equal(t, 4, total)
}

func TestParseSkipsEmptySystemNode(t *testing.T) {
	archive := writeArchive(t, `[
		{
			"id": "c1",
			"title": "with system",
			"create_time": 1,
			"update_time": 1,
			"current_node": "user-1",
			"mapping": {
				"root": {"id": "root", "parent": "", "children": ["sys"], "message": null},
				"sys": {"id": "sys", "parent": "root", "children": ["user-1"], "message": {"id": "sys", "author": {"role": "system"}, "create_time": 0, "content": {"content_type": "text", "parts": []}}},
				"user-1": {"id": "user-1", "parent": "sys", "children": [], "message": {"id": "user-1", "author": {"role": "user"}, "create_time": 1, "content": {"content_type": "text", "parts": ["hello"]}}}
			}
		}
	]`)

	result, err := Parse(archive)
	require.NoError(t, err)
	require.Len(t, result.Conversations, 1)
	msgs := result.Conversations[0].Messages
	require.Len(t, msgs, 1)
	require.Equal(t, "hello", msgs[0].ContentText)
}

func TestParseSkipsMalformedRecordWithDiagnostic(t *testing.T) {
	archive := writeArchive(t, `[
		{"id": "", "title": "missing id", "mapping": {"a": {"id": "a", "parent": "", "children": [], "message": null}}},
		{
			"id": "good",
			"title": "ok",
			"current_node": "m1",
			"mapping": {
				"root": {"id": "root", "parent": "", "children": ["m1"], "message": null},
				"m1": {"id": "m1", "parent": "root", "children": [], "message": {"id": "m1", "author": {"role": "user"}, "create_time": 1, "content": {"content_type": "text", "parts": ["hi"]}}}
			}
		}
	]`)

	result, err := Parse(archive)
	require.NoError(t, err)
	require.Len(t, result.Conversations, 1)
	require.Len(t, result.Diagnostics, 1)
	require.Equal(t, 0, result.Diagnostics[0].Index)
}
