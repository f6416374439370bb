package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSinceEmptyPhraseReturnsZero(t *testing.T) {
	since, err := parseSince("")
	require.NoError(t, err)
	require.Zero(t, since)
}

func TestParseSinceRejectsUnparseablePhrase(t *testing.T) {
	_, err := parseSince("zzyzx not a time at all")
	require.Error(t, err)
}

func TestParseSinceAcceptsRelativePhrase(t *testing.T) {
	since, err := parseSince("1 hour ago")
	require.NoError(t, err)
	require.Greater(t, since, int64(0))
}
