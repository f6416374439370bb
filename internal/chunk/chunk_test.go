package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chatvault/chatvault/internal/types"
)

// tenMessageConversation builds a 10-message conversation whose combined
// text (with headers) totals roughly 8000 characters, matching spec.md
// scenario S4.
func tenMessageConversation() []types.Message {
	msgs := make([]types.Message, 10)
	for i := range msgs {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		msgs[i] = types.Message{
			ID:          fmt.Sprintf("m%d", i),
			Role:        role,
			ContentType: types.ContentText,
			ContentText: strings.Repeat("x", 780),
			TurnIndex:   i,
		}
	}
	return msgs
}

func idSet(chunks []types.Chunk) map[string]bool {
	out := map[string]bool{}
	for _, c := range chunks {
		out[c.ID] = true
	}
	return out
}

func TestChunkIdempotentWithSameParameters(t *testing.T) {
	messages := tenMessageConversation()

	first, err := Chunk("c1", messages, 2500, 250)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := Chunk("c1", messages, 2500, 250)
	require.NoError(t, err)

	require.Equal(t, idSet(first), idSet(second))
}

func TestChunkDifferentOverlapProducesDifferentIDs(t *testing.T) {
	messages := tenMessageConversation()

	base, err := Chunk("c1", messages, 2500, 250)
	require.NoError(t, err)

	changed, err := Chunk("c1", messages, 2500, 500)
	require.NoError(t, err)

	baseIDs := idSet(base)
	for _, c := range changed {
		require.False(t, baseIDs[c.ID], "changed-overlap chunk id %s should not appear in the base id set", c.ID)
	}
}

func TestChunkRejectsOverlapNotLessThanTargetSize(t *testing.T) {
	_, err := Chunk("c1", tenMessageConversation(), 100, 100)
	require.Error(t, err)
}
