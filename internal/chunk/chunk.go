// Package chunk implements the deterministic overlapping chunker
// described in spec.md §4.4: a sliding window over a conversation's
// turn-ordered text, producing content-addressed chunk identities.
package chunk

import (
	"fmt"
	"strings"

	"github.com/chatvault/chatvault/internal/types"
)

// span tracks one message's byte range within the concatenated
// conversation text, so a window's boundaries can snap to whichever
// messages are fully contained rather than splitting mid-message.
type span struct {
	turnIndex int
	text      string
	start     int
	end       int
}

// Chunk slides a window of length targetSize forward by
// targetSize-overlap over conv's messages (concatenated in turn_index
// order with role-prefixed headers), emitting one Chunk per window that
// is not a strict subset of the previous one. Re-running with identical
// parameters produces identical chunk rows (spec.md §4.4 "Idempotence").
func Chunk(conversationID string, messages []types.Message, targetSize, overlap int) ([]types.Chunk, error) {
	if targetSize <= 0 {
		return nil, fmt.Errorf("chunk: target_size must be positive")
	}
	if overlap < 0 || overlap >= targetSize {
		return nil, fmt.Errorf("chunk: overlap must be in [0, target_size)")
	}
	if len(messages) == 0 {
		return nil, nil
	}

	spans := make([]span, len(messages))
	offset := 0
	for i, m := range messages {
		text := fmt.Sprintf("[%s]\n%s\n\n", m.Role, m.ContentText)
		spans[i] = span{turnIndex: m.TurnIndex, text: text, start: offset, end: offset + len(text)}
		offset += len(text)
	}
	total := offset

	step := targetSize - overlap
	var chunks []types.Chunk
	lastIncluded := -1
	windowStart := 0

	for windowStart < total {
		firstIdx, lastIdx := windowFit(spans, windowStart, windowStart+targetSize)
		if firstIdx == -1 {
			// No message fits fully inside this window; widen it to the
			// next message so every chunk contains at least one full
			// message header (spec.md §4.4 "Algorithm").
			for i, sp := range spans {
				if sp.end > windowStart {
					firstIdx, lastIdx = i, i
					break
				}
			}
		}
		if firstIdx == -1 {
			break
		}

		if lastIdx <= lastIncluded {
			// This window adds nothing past what the previous chunk
			// already covers; skip ahead to just past it instead of
			// emitting a duplicate or fully-contained chunk.
			windowStart = spans[lastIncluded].end
			continue
		}

		var buf strings.Builder
		for i := firstIdx; i <= lastIdx; i++ {
			buf.WriteString(spans[i].text)
		}
		text := buf.String()
		textHash := types.ComputeTextHash(text)
		startTurn := spans[firstIdx].turnIndex
		endTurn := spans[lastIdx].turnIndex

		chunks = append(chunks, types.Chunk{
			ID:             computeChunkID(conversationID, startTurn, endTurn, targetSize, overlap, textHash),
			ConversationID: conversationID,
			StartTurn:      startTurn,
			EndTurn:        endTurn,
			Text:           text,
			TextHash:       textHash,
		})

		lastIncluded = lastIdx
		windowStart += step
		if windowStart <= spans[firstIdx].start {
			windowStart = spans[firstIdx].start + 1
		}
	}

	return chunks, nil
}

// windowFit returns the first and last span index fully contained in
// [windowStart, windowEnd), or (-1, -1) if none are.
func windowFit(spans []span, windowStart, windowEnd int) (int, int) {
	first, last := -1, -1
	for i, sp := range spans {
		if sp.start >= windowStart && sp.end <= windowEnd {
			if first == -1 {
				first = i
			}
			last = i
		}
	}
	return first, last
}

func computeChunkID(conversationID string, startTurn, endTurn, targetSize, overlap int, textHash string) string {
	key := fmt.Sprintf("%s%d%d%d%d%s", conversationID, startTurn, endTurn, targetSize, overlap, textHash)
	return types.ComputeTextHash(key)
}
