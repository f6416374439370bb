// Package render turns a Conversation's linearized Messages into the
// text and Markdown documents shared by the Exporters, the Job
// Coordinator's AI-pattern prompts, and the CLI's terminal preview.
package render

import (
	"fmt"
	"strings"

	"github.com/chatvault/chatvault/internal/types"
)

// roleHeading returns the per-message heading text, matching the
// title-case role labels a reader of an exported transcript expects.
func roleHeading(role types.Role) string {
	switch role {
	case types.RoleUser:
		return "User"
	case types.RoleAssistant:
		return "Assistant"
	case types.RoleSystem:
		return "System"
	case types.RoleTool:
		return "Tool"
	default:
		return "Unknown"
	}
}

// Document renders one conversation as the per-conversation export
// format: a title line followed by one role-headed section per message
// in turn_index order (spec.md §4.6). Both the single-conversation
// exporter and the vault directory exporter call this, so their output
// is identical by construction.
func Document(conv types.Conversation, messages []types.Message) string {
	var b strings.Builder
	title := conv.Title
	if title == "" {
		title = conv.ID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	for _, m := range messages {
		fmt.Fprintf(&b, "## %s (turn %d)\n\n%s\n\n", roleHeading(m.Role), m.TurnIndex, m.ContentText)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// ProjectDocument concatenates each conversation's Document under its
// own top-level heading, used to build the prompt for project-scoped
// patterns (spec.md §4.7, analyze_paper/summarize/extract_wisdom run
// over "all project conversations").
func ProjectDocument(project types.Project, conversations []ConversationMessages) string {
	var b strings.Builder
	name := project.DisplayName
	if name == "" {
		name = project.GizmoID
	}
	fmt.Fprintf(&b, "# Project: %s\n\n", name)
	for _, cm := range conversations {
		b.WriteString(Document(cm.Conversation, cm.Messages))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// ConversationMessages pairs a Conversation with its linearized
// Messages, the shape ProjectDocument and the bulk exporters iterate
// over.
type ConversationMessages struct {
	Conversation types.Conversation
	Messages     []types.Message
}
