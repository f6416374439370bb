// Package ingest drives one archive through internal/parser and
// internal/store, applying the dedup and force-reimport rules from
// spec.md §4.2.
package ingest

import (
	"context"
	"log/slog"

	"github.com/chatvault/chatvault/internal/parser"
	"github.com/chatvault/chatvault/internal/store"
	"github.com/chatvault/chatvault/internal/types"
)

// Report is the result of one Ingest call (spec.md §4.2 contract:
// "ingest(archive_path, force?) → {conversations_added, messages_added,
// skipped}").
type Report struct {
	ConversationsAdded int
	MessagesAdded      int
	Skipped            int
	FailedRecords      int
	Diagnostics        []parser.Diagnostic
}

// Ingestor wires a Store to drive ingestion.
type Ingestor struct {
	store  *store.Store
	logger *slog.Logger
}

func New(s *store.Store, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{store: s, logger: logger}
}

// Ingest parses archivePath and persists every conversation it contains.
// A conversation already present with a matching raw_hash is skipped
// unless force is true, in which case its prior rows are deleted and
// rewritten in the same transaction (spec.md §4.2).
func (ing *Ingestor) Ingest(ctx context.Context, archivePath string, force bool) (Report, error) {
	if abandoned, err := ing.store.DeleteAbandonedConversations(ctx); err != nil {
		return Report{}, err
	} else if len(abandoned) > 0 {
		ing.logger.Warn("ingest: discarding abandoned conversations from a prior crash", "count", len(abandoned))
	}

	result, err := parser.Parse(archivePath)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		FailedRecords: len(result.Diagnostics),
		Diagnostics:   result.Diagnostics,
	}

	for i, conv := range result.Conversations {
		added, err := ing.ingestOne(ctx, conv, force)
		if err != nil {
			ing.logger.Error("ingest: conversation failed, continuing with the rest of the archive", "conversation_id", conv.Conversation.ID, "error", err)
			report.FailedRecords++
			report.Diagnostics = append(report.Diagnostics, parser.Diagnostic{
				Index:  i,
				ID:     conv.Conversation.ID,
				Reason: err.Error(),
			})
			continue
		}
		if added {
			report.ConversationsAdded++
			report.MessagesAdded += len(conv.Messages)
		} else {
			report.Skipped++
		}
	}
	return report, nil
}

func (ing *Ingestor) ingestOne(ctx context.Context, conv parser.ParsedConversation, force bool) (bool, error) {
	existing, ok, err := ing.store.LookupConversation(ctx, conv.Conversation.ID)
	if err != nil {
		return false, err
	}
	if ok && existing.IngestedAt != nil && existing.RawHash == conv.Conversation.RawHash && !force {
		return false, nil
	}

	if err := ing.store.ReplaceConversation(ctx, conv.Conversation, conv.Messages); err != nil {
		return false, err
	}

	if conv.Conversation.GizmoID != "" {
		if err := ing.store.UpsertProject(ctx, types.Project{
			GizmoID:     conv.Conversation.GizmoID,
			GizmoType:   types.GizmoGPT,
			DisplayName: conv.Conversation.GizmoID,
		}); err != nil {
			return false, err
		}
	}

	return true, nil
}
