package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	for _, debug := range []bool{false, true} {
		l, err := NewLogger(debug)
		require.NoError(t, err)
		assert.Equal(t, debug, l.Core().Enabled(-1))
	}
}

func TestSetupTracingWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "  ", "patentos")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupTracingWithEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "http://127.0.0.1:4318", "patentos-test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
