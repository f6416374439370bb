package render

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chatvault/chatvault/internal/types"
)

func TestDocumentOrdersByTurnIndexAndLabelsRoles(t *testing.T) {
	conv := types.Conversation{ID: "c1", Title: "Debugging a race"}
	messages := []types.Message{
		{ID: "m1", Role: types.RoleUser, ContentText: "why is this flaky?", TurnIndex: 0},
		{ID: "m2", Role: types.RoleAssistant, ContentText: "likely a data race", TurnIndex: 1},
	}

	doc := Document(conv, messages)
	require.Contains(t, doc, "# Debugging a race")
	require.Contains(t, doc, "## User (turn 0)")
	require.Contains(t, doc, "why is this flaky?")
	require.Contains(t, doc, "## Assistant (turn 1)")
}

func TestDocumentFallsBackToIDWhenTitleEmpty(t *testing.T) {
	doc := Document(types.Conversation{ID: "c2"}, nil)
	require.Contains(t, doc, "# c2")
}

func TestProjectDocumentConcatenatesConversations(t *testing.T) {
	project := types.Project{GizmoID: "g1", DisplayName: "Research"}
	conversations := []ConversationMessages{
		{Conversation: types.Conversation{ID: "a", Title: "First"}, Messages: []types.Message{
			{Role: types.RoleUser, ContentText: "hi", TurnIndex: 0},
		}},
		{Conversation: types.Conversation{ID: "b", Title: "Second"}, Messages: []types.Message{
			{Role: types.RoleUser, ContentText: "hello", TurnIndex: 0},
		}},
	}

	doc := ProjectDocument(project, conversations)
	require.Contains(t, doc, "# Project: Research")
	require.Contains(t, doc, "# First")
	require.Contains(t, doc, "# Second")
}
