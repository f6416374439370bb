package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chatvault/chatvault/internal/store"
)

func TestLoadBootstrapDefaultsWhenNoFileOrEnv(t *testing.T) {
	b, err := LoadBootstrap("")
	require.NoError(t, err)
	require.Equal(t, "chatvault.db", b.DBPath)
	require.Equal(t, "generated", b.CacheDir)
	require.Equal(t, ":8080", b.Addr)
}

func TestLoadBootstrapYamlOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("db-path: from-yaml.db\naddr: \":9090\"\n"), 0o644))

	b, err := LoadBootstrap(configPath)
	require.NoError(t, err)
	require.Equal(t, "from-yaml.db", b.DBPath)
	require.Equal(t, ":9090", b.Addr)
	require.Equal(t, "generated", b.CacheDir)
}

func TestLoadBootstrapEnvOverridesYaml(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("db-path: from-yaml.db\n"), 0o644))

	t.Setenv("CHATVAULT_DB_PATH", "from-env.db")

	b, err := LoadBootstrap(configPath)
	require.NoError(t, err)
	require.Equal(t, "from-env.db", b.DBPath)
}

func TestSettingsRoundTripThroughStore(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	loaded, err := Load(ctx, s)
	require.NoError(t, err)
	require.Equal(t, DefaultSettings(), loaded)

	settings := Settings{ChunkTarget: 1500, ChunkOverlap: 150, RedactByDefault: true}
	require.NoError(t, Save(ctx, s, settings))

	roundTripped, err := Load(ctx, s)
	require.NoError(t, err)
	require.Equal(t, settings, roundTripped)
}

func TestSetValueRoutesBootstrapKeysToYamlAndOthersToStore(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("db-path: chatvault.db\n"), 0o644))

	require.NoError(t, SetValue(ctx, s, configPath, "addr", ":1234"))
	b, err := LoadBootstrap(configPath)
	require.NoError(t, err)
	require.Equal(t, ":1234", b.Addr)

	require.NoError(t, SetValue(ctx, s, configPath, "chunk-target", "999"))
	v, ok, err := s.GetConfigValue(ctx, "chunk-target")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "999", v)
}

func TestIsBootstrapKey(t *testing.T) {
	require.True(t, IsBootstrapKey("db-path"))
	require.True(t, IsBootstrapKey("cache-dir"))
	require.True(t, IsBootstrapKey("addr"))
	require.False(t, IsBootstrapKey("chunk-target"))
}
