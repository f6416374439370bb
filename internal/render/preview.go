package render

import (
	glamour "charm.land/glamour/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Preview renders Markdown to ANSI, falling back to the raw text on a
// render error rather than failing outright (the same fallback
// intelligencedev-manifold's TUI uses around glamour.Render). No CLI
// command calls it: `chatvault export` has no preview flag.
func Preview(markdown string) string {
	style := "dark"
	if termenv.HasDarkBackground() {
		style = "dark"
	} else {
		style = "light"
	}
	out, err := glamour.Render(markdown, style)
	if err != nil {
		return markdown
	}
	return out
}

// Heading renders a short lipgloss-styled heading line for CLI output
// that isn't a full Markdown document (job status, stats summaries).
func Heading(text string) string {
	style := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	return style.Render(text)
}
