package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scanforge/internal/observability"
)

func TestInit_NoEndpointUsesNoopProviders(t *testing.T) {
	var buf bytes.Buffer

	providers, err := observability.Init(observability.Config{
		ServiceName: "scanforge",
		RunID:       "run-noop",
		LogWriter:   &buf,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, providers.Shutdown(context.Background()))
	})

	require.NotNil(t, providers.Tracer)
	require.NotNil(t, providers.Meter)
	require.NotNil(t, providers.Logger)

	// No-op tracer spans must be invalid (nothing is recorded or exported).
	_, span := providers.Tracer.Start(context.Background(), "capture")
	defer span.End()

	assert.False(t, span.SpanContext().IsValid())
}

func TestInit_LoggerWritesToConfiguredWriter(t *testing.T) {
	var buf bytes.Buffer

	providers, err := observability.Init(observability.Config{
		ServiceName: "scanforge",
		RunID:       "run-log",
		LogLevel:    slog.LevelDebug,
		LogWriter:   &buf,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, providers.Shutdown(context.Background()))
	})

	providers.Logger.Debug("capture dispatched", "mode", "gradle")

	out := buf.String()

	assert.Contains(t, out, "capture dispatched")
	assert.Contains(t, out, "run-log")
	assert.Contains(t, out, "scanforge")
}

func TestInit_JSONLogger(t *testing.T) {
	var buf bytes.Buffer

	providers, err := observability.Init(observability.Config{
		ServiceName: "scanforge",
		LogJSON:     true,
		LogWriter:   &buf,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, providers.Shutdown(context.Background()))
	})

	providers.Logger.Info("merge complete")

	line := strings.TrimSpace(buf.String())

	assert.True(t, strings.HasPrefix(line, "{"), "expected JSON output, got %q", line)
	assert.Contains(t, line, `"msg":"merge complete"`)
}

func TestInit_ShutdownIsIdempotentWithoutExport(t *testing.T) {
	providers, err := observability.Init(observability.Config{ServiceName: "scanforge"})
	require.NoError(t, err)

	require.NoError(t, providers.Shutdown(context.Background()))
	require.NoError(t, providers.Shutdown(context.Background()))
}
