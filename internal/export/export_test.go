package export

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chatvault/chatvault/internal/store"
	"github.com/chatvault/chatvault/internal/types"
)

func seedConversation(t *testing.T, s *store.Store, id, title string) {
	t.Helper()
	conv := types.Conversation{ID: id, Title: title, RawHash: "hash-" + id}
	messages := []types.Message{
		{ID: id + "-1", ConversationID: id, Role: types.RoleUser, ContentType: types.ContentText, ContentText: "hi there my.email@example.com", TurnIndex: 0, TextHash: "t1"},
		{ID: id + "-2", ConversationID: id, Role: types.RoleAssistant, ContentType: types.ContentText, ContentText: "hello back", TurnIndex: 1, TextHash: "t2"},
	}
	require.NoError(t, s.ReplaceConversation(context.Background(), conv, messages))
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConversationDocumentRedactsWhenRequested(t *testing.T) {
	s := openTestStore(t)
	seedConversation(t, s, "c1", "Intro")

	plain, err := ConversationDocument(context.Background(), s, "c1", Options{})
	require.NoError(t, err)
	require.Contains(t, plain, "my.email@example.com")

	redacted, err := ConversationDocument(context.Background(), s, "c1", Options{Redact: true})
	require.NoError(t, err)
	require.NotContains(t, redacted, "my.email@example.com")
	require.Contains(t, redacted, "[REDACTED_EMAIL_1]")
}

func TestBulkJSONLOrdersByConversationThenTurn(t *testing.T) {
	s := openTestStore(t)
	seedConversation(t, s, "b", "Second")
	seedConversation(t, s, "a", "First")

	var buf bytes.Buffer
	require.NoError(t, BulkJSONL(context.Background(), s, &buf, Options{}))

	dec := json.NewDecoder(&buf)
	var first messageRecord
	require.NoError(t, dec.Decode(&first))
	require.Equal(t, "a", first.ConversationID)
	require.Equal(t, 0, first.TurnIndex)
}

func TestTrainingPairsBreaksOnNonAdjacentRoles(t *testing.T) {
	messages := []types.Message{
		{Role: types.RoleUser, ContentText: "q1", TurnIndex: 0},
		{Role: types.RoleAssistant, ContentText: "a1", TurnIndex: 1},
		{Role: types.RoleTool, ContentText: "tool output", TurnIndex: 2},
		{Role: types.RoleAssistant, ContentText: "a2", TurnIndex: 3},
	}
	pairs := TrainingPairs(messages)
	require.Len(t, pairs, 1)
	require.Equal(t, "q1", pairs[0].A)
	require.Equal(t, "a1", pairs[0].B)
}

func TestVaultDirectoryWritesOneFilePerConversation(t *testing.T) {
	s := openTestStore(t)
	seedConversation(t, s, "c1", "My Title")
	seedConversation(t, s, "c2", "My Title")

	dir := t.TempDir()
	n, err := VaultDirectory(context.Background(), s, dir, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.NotEqual(t, entries[0].Name(), entries[1].Name())
}

func TestVaultFilenameSanitizesTitle(t *testing.T) {
	conv := types.Conversation{ID: "abcdefgh1234", Title: "Hello, World! / Debug"}
	name := VaultFilename(conv)
	require.Equal(t, filepath.Ext(name), ".md")
	require.NotContains(t, name, " ")
	require.NotContains(t, name, "/")
}
