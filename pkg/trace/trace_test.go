package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTrace_Disabled(t *testing.T) {
	shutdown, err := InitTrace("market-data", Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTrace_UnknownExporter(t *testing.T) {
	_, err := InitTrace("market-data", Config{Enabled: true, Exporter: "zipkin"})
	assert.Error(t, err)
}

func TestInitTrace_Stdout(t *testing.T) {
	shutdown, err := InitTrace("market-data", Config{Enabled: true, Exporter: "stdout"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
