package parser

import (
	"fmt"
	"strings"

	"github.com/chatvault/chatvault/internal/types"
)

// flattenContent joins a node's content parts with a single blank line.
// Non-text parts are rendered as "[content_type: <kind>]" followed by any
// text payload; whitespace inside a part is preserved but trailing
// whitespace on each line is trimmed (spec.md §3 "Content flattening").
func flattenContent(c rawContent) string {
	var pieces []string

	switch c.ContentType {
	case "", "text":
		for _, p := range c.Parts {
			if s, ok := p.(string); ok {
				pieces = append(pieces, s)
			} else {
				pieces = append(pieces, fmt.Sprintf("[content_type: %s]", describePart(p)))
			}
		}
		if len(pieces) == 0 && c.Text != "" {
			pieces = append(pieces, c.Text)
		}
	case "code":
		pieces = append(pieces, fmt.Sprintf("[content_type: code]\n%s", c.Text))
	case "execution_output":
		pieces = append(pieces, fmt.Sprintf("[content_type: tool_result]\n%s", c.Result))
	default:
		text := c.Text
		if text == "" {
			text = c.Result
		}
		pieces = append(pieces, fmt.Sprintf("[content_type: %s]\n%s", c.ContentType, text))
	}

	joined := strings.Join(pieces, "\n\n")
	return trimTrailingWhitespacePerLine(joined)
}

func describePart(p any) string {
	if m, ok := p.(map[string]any); ok {
		if ct, ok := m["content_type"].(string); ok {
			return ct
		}
	}
	return "other"
}

func trimTrailingWhitespacePerLine(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.Join(lines, "\n")
}

// classifyContentType maps the export's content_type onto the fixed
// enumeration Message.ContentType stores.
func classifyContentType(c rawContent) types.ContentType {
	switch c.ContentType {
	case "", "text":
		return types.ContentText
	case "code":
		return types.ContentCode
	case "execution_output":
		return types.ContentToolResult
	default:
		return types.ContentOther
	}
}

// classifyRole folds unknown author roles into RoleUnknown, per spec.md
// §3 "Failure tolerance: Unknown roles fold into unknown."
func classifyRole(role string) types.Role {
	switch types.Role(role) {
	case types.RoleUser, types.RoleAssistant, types.RoleSystem, types.RoleTool:
		return types.Role(role)
	default:
		return types.RoleUnknown
	}
}
