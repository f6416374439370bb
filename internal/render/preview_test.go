package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreviewNeverReturnsEmptyForNonEmptyInput(t *testing.T) {
	out := Preview("# Title\n\nSome *text*.\n")
	require.NotEmpty(t, out)
	require.True(t, strings.Contains(out, "Title"))
}

func TestHeadingRendersNonEmptyString(t *testing.T) {
	require.Contains(t, Heading("Stats"), "Stats")
}
