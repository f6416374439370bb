package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), "chatvault-test", false)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitEnabledInstallsProviders(t *testing.T) {
	shutdown, err := Init(context.Background(), "chatvault-test", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	m := Meter("chatvault/test")
	require.NotNil(t, m)
	tr := Tracer("chatvault/test")
	require.NotNil(t, tr)
}
