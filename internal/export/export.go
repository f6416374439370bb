// Package export implements the four deterministic output formats
// described in spec.md §4.6: the per-conversation document, the bulk
// message stream, training pairs, and the vault directory. All four
// share internal/render's role-header document function so a
// conversation renders identically whether it's exported alone or as
// part of a vault.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/chatvault/chatvault/internal/redact"
	"github.com/chatvault/chatvault/internal/render"
	"github.com/chatvault/chatvault/internal/store"
	"github.com/chatvault/chatvault/internal/types"
)

// Options controls the optional redaction pass every exporter honors,
// plus a time lower-bound the bulk exporters apply to conversation
// selection (`chatvault export --since`, spec.md §6).
type Options struct {
	Redact bool
	Since  int64 // unix seconds; 0 means no lower bound
}

func listConversations(ctx context.Context, s *store.Store, opts Options) ([]types.Conversation, error) {
	if opts.Since > 0 {
		return s.ListConversationsSince(ctx, opts.Since)
	}
	return s.ListConversations(ctx)
}

// applyRedaction redacts one conversation's messages with a fresh
// Redactor, so placeholder numbering restarts with each conversation;
// bulk exports do not share one counter across conversations.
func applyRedaction(messages []types.Message, opts Options) []types.Message {
	if !opts.Redact {
		return messages
	}
	r := redact.New()
	out := make([]types.Message, len(messages))
	for i, m := range messages {
		m.ContentText = r.Redact(m.ContentText)
		out[i] = m
	}
	return out
}

// ConversationDocument renders the per-conversation document for one
// conversation ID (spec.md §4.6 "Per-conversation document").
func ConversationDocument(ctx context.Context, s *store.Store, id string, opts Options) (string, error) {
	conv, messages, err := s.GetConversation(ctx, id)
	if err != nil {
		return "", fmt.Errorf("export: load conversation: %w", err)
	}
	messages = applyRedaction(messages, opts)
	return render.Document(conv, messages), nil
}

// messageRecord is one line of the bulk JSONL stream.
type messageRecord struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	ContentText    string `json:"content_text"`
	CreatedAt      int64  `json:"created_at"`
	TurnIndex      int    `json:"turn_index"`
}

// BulkJSONL streams one JSON object per message across every ingested
// conversation, ordered by (conversation_id, turn_index) (spec.md §4.6
// "Bulk message stream").
func BulkJSONL(ctx context.Context, s *store.Store, w io.Writer, opts Options) error {
	convs, err := listConversations(ctx, s, opts)
	if err != nil {
		return fmt.Errorf("export: list conversations: %w", err)
	}
	// ListConversations orders by updated_at; the bulk stream's ordering
	// invariant is (conversation_id, turn_index), so sort by ID here.
	sortConversationsByID(convs)

	enc := json.NewEncoder(w)
	for _, conv := range convs {
		_, messages, err := s.GetConversation(ctx, conv.ID)
		if err != nil {
			return fmt.Errorf("export: load conversation %s: %w", conv.ID, err)
		}
		messages = applyRedaction(messages, opts)
		for _, m := range messages {
			rec := messageRecord{
				ID:             m.ID,
				ConversationID: m.ConversationID,
				Role:           string(m.Role),
				ContentText:    m.ContentText,
				CreatedAt:      m.CreatedAt,
				TurnIndex:      m.TurnIndex,
			}
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("export: encode message %s: %w", m.ID, err)
			}
		}
	}
	return nil
}

func sortConversationsByID(convs []types.Conversation) {
	for i := 1; i < len(convs); i++ {
		for j := i; j > 0 && convs[j-1].ID > convs[j].ID; j-- {
			convs[j-1], convs[j] = convs[j], convs[j-1]
		}
	}
}

// Pair is one contiguous user→assistant adjacency pair (spec.md §4.6
// "Training pairs").
type Pair struct {
	A    string       `json:"a"`
	B    string       `json:"b"`
	Meta PairMetadata `json:"meta"`
}

// PairMetadata identifies where a Pair came from.
type PairMetadata struct {
	ConversationID string `json:"conversation_id"`
	PairIndex      int    `json:"pair_index"`
}

// TrainingPairs extracts every contiguous user→assistant pair from one
// conversation's linearized messages. Tool and system turns break
// adjacency: a user turn immediately followed by an assistant turn
// pairs, anything else does not.
func TrainingPairs(messages []types.Message) []Pair {
	var pairs []Pair
	idx := 0
	for i := 0; i+1 < len(messages); i++ {
		if messages[i].Role != types.RoleUser || messages[i+1].Role != types.RoleAssistant {
			continue
		}
		pairs = append(pairs, Pair{
			A: messages[i].ContentText,
			B: messages[i+1].ContentText,
			Meta: PairMetadata{
				PairIndex: idx,
			},
		})
		idx++
	}
	return pairs
}

// ConversationTrainingPairs loads one conversation and returns its
// TrainingPairs with ConversationID stamped on each.
func ConversationTrainingPairs(ctx context.Context, s *store.Store, id string, opts Options) ([]Pair, error) {
	_, messages, err := s.GetConversation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("export: load conversation: %w", err)
	}
	messages = applyRedaction(messages, opts)
	pairs := TrainingPairs(messages)
	for i := range pairs {
		pairs[i].Meta.ConversationID = id
	}
	return pairs, nil
}

// BulkTrainingPairs extracts TrainingPairs across every ingested
// conversation, for the `POST /api/export/pairs` bulk endpoint
// (spec.md §6).
func BulkTrainingPairs(ctx context.Context, s *store.Store, opts Options) ([]Pair, error) {
	convs, err := listConversations(ctx, s, opts)
	if err != nil {
		return nil, fmt.Errorf("export: list conversations: %w", err)
	}
	sortConversationsByID(convs)

	var all []Pair
	for _, conv := range convs {
		pairs, err := ConversationTrainingPairs(ctx, s, conv.ID, opts)
		if err != nil {
			return nil, fmt.Errorf("export: pairs for %s: %w", conv.ID, err)
		}
		all = append(all, pairs...)
	}
	return all, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9-]+`)

// VaultFilename derives the filename spec.md §4.6 describes for the
// vault directory exporter: a sanitized title plus a short ID prefix,
// so two conversations sharing a title never collide.
func VaultFilename(conv types.Conversation) string {
	title := strings.TrimSpace(conv.Title)
	if title == "" {
		title = "untitled"
	}
	slug := strings.Trim(unsafeFilenameChars.ReplaceAllString(strings.ToLower(strings.ReplaceAll(title, " ", "-")), "-"), "-")
	if slug == "" {
		slug = "untitled"
	}
	prefix := conv.ID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("%s-%s.md", slug, prefix)
}

// VaultDirectory writes one Markdown document per conversation into
// dir, named by VaultFilename, with content identical to
// ConversationDocument (spec.md §4.6 "Vault directory").
func VaultDirectory(ctx context.Context, s *store.Store, dir string, opts Options) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("export: create vault dir: %w", err)
	}
	convs, err := listConversations(ctx, s, opts)
	if err != nil {
		return 0, fmt.Errorf("export: list conversations: %w", err)
	}

	written := 0
	for _, conv := range convs {
		_, messages, err := s.GetConversation(ctx, conv.ID)
		if err != nil {
			return written, fmt.Errorf("export: load conversation %s: %w", conv.ID, err)
		}
		messages = applyRedaction(messages, opts)
		doc := render.Document(conv, messages)
		path := filepath.Join(dir, VaultFilename(conv))
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			return written, fmt.Errorf("export: write %s: %w", path, err)
		}
		written++
	}
	return written, nil
}
