package pattern

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chatvault/chatvault/internal/types"
)

func TestLoadFallsBackToBuiltin(t *testing.T) {
	c := NewCatalog(t.TempDir())
	def, err := c.Load(types.PatternSummarize)
	require.NoError(t, err)
	require.Contains(t, def.Prompt, "{{content}}")
}

func TestLoadPrefersSearchPathOverBuiltin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, string(types.PatternSummarize)+Ext)
	require.NoError(t, os.WriteFile(path, []byte(`
pattern = "summarize"
description = "custom"
prompt = "Custom summary of {{content}} by {{author}}."
`), 0o644))

	c := NewCatalog(dir)
	def, err := c.Load(types.PatternSummarize)
	require.NoError(t, err)
	require.Equal(t, "custom", def.Description)

	rendered := Render(def, map[string]string{"content": "hello", "author": "alice"})
	require.Equal(t, "Custom summary of hello by alice.", rendered)
}

func TestRenderLeavesUnresolvedPlaceholder(t *testing.T) {
	def := &Definition{Prompt: "Hi {{name}}, {{missing}}."}
	out := Render(def, map[string]string{"name": "bob"})
	require.Equal(t, "Hi bob, {{missing}}.", out)
}
