package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveBootstrapAppliesFlagOverridesOverConfigDefaults(t *testing.T) {
	cmd := rootCmd
	configPath = ""
	require.NoError(t, cmd.ParseFlags([]string{"--db", "override.db"}))
	defer cmd.Flags().Set("db", "")

	b, err := resolveBootstrap(cmd)
	require.NoError(t, err)
	require.Equal(t, "override.db", b.DBPath)
	require.Equal(t, "generated", b.CacheDir)
}

func TestWorkerBinaryPathFallsBackToBareNameWhenNoSiblingExists(t *testing.T) {
	require.Equal(t, "chatvault-worker", workerBinaryPath())
}
