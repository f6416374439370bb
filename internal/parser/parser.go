package parser

import (
	"fmt"

	"github.com/chatvault/chatvault/internal/types"
)

// ParsedConversation is one conversation record after linearization,
// ready for internal/ingest to hash, dedup, and persist.
type ParsedConversation struct {
	Conversation types.Conversation
	Messages     []types.Message
	RawRecord    map[string]any
}

// Diagnostic records a conversation record the parser could not process,
// per spec.md §3 "Failure tolerance: a malformed conversation record is
// skipped with a diagnostic; ingestion continues."
type Diagnostic struct {
	Index  int
	ID     string
	Reason string
}

// Result is the outcome of parsing one archive.
type Result struct {
	Conversations []ParsedConversation
	Diagnostics   []Diagnostic
}

// Parse reads archivePath's conversation-list file and linearizes every
// conversation record it contains.
func Parse(archivePath string) (Result, error) {
	data, err := readConversationsFile(archivePath)
	if err != nil {
		return Result{}, err
	}

	convs, raws, err := decodeConversations(data)
	if err != nil {
		return Result{}, fmt.Errorf("decode conversations: %w", err)
	}

	var result Result
	for i, conv := range convs {
		parsed, err := parseOne(conv, raws[i])
		if err != nil {
			result.Diagnostics = append(result.Diagnostics, Diagnostic{
				Index: i, ID: conv.ID, Reason: err.Error(),
			})
			continue
		}
		result.Conversations = append(result.Conversations, parsed)
	}
	return result, nil
}

func parseOne(conv rawConversation, raw map[string]any) (ParsedConversation, error) {
	if conv.ID == "" {
		return ParsedConversation{}, fmt.Errorf("missing conversation id")
	}
	if len(conv.Mapping) == 0 {
		return ParsedConversation{}, fmt.Errorf("conversation %s: empty message mapping", conv.ID)
	}

	path := linearize(conv)

	messages := make([]types.Message, 0, len(path))
	for turn, nodeID := range path {
		node := conv.Mapping[nodeID]
		msg := node.Message

		id := msg.ID
		if id == "" {
			id = nodeID
		}
		text := flattenContent(msg.Content)

		messages = append(messages, types.Message{
			ID:             id,
			ConversationID: conv.ID,
			Role:           classifyRole(msg.Author.Role),
			ContentType:    classifyContentType(msg.Content),
			ContentText:    text,
			CreatedAt:      int64(msg.CreateTime),
			TurnIndex:      turn,
			ParentID:       node.Parent,
			TextHash:       types.ComputeTextHash(text),
		})
	}

	rawHash := types.ComputeRawHash(raw)

	conversation := types.Conversation{
		ID:               conv.ID,
		Title:            conv.Title,
		CreatedAt:        int64(conv.CreateTime),
		UpdatedAt:        int64(conv.UpdateTime),
		MessageCount:     len(messages),
		DefaultModelSlug: conv.DefaultModelSlug,
		GizmoID:          conv.GizmoID,
		RawHash:          rawHash,
	}

	if err := conversation.Validate(); err != nil {
		return ParsedConversation{}, err
	}

	return ParsedConversation{Conversation: conversation, Messages: messages, RawRecord: raw}, nil
}
