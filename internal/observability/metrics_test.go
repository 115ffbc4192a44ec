package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/scanforge/internal/observability"
)

func setupTestMeter(t *testing.T) (*observability.PhaseMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	pm, err := observability.NewPhaseMetrics(meter)
	require.NoError(t, err)

	return pm, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func TestPhaseMetrics_RecordPhase(t *testing.T) {
	t.Parallel()

	pm, reader := setupTestMeter(t)
	ctx := context.Background()

	pm.RecordPhase(ctx, "capture", "gradle", "ok", 100*time.Millisecond)
	pm.RecordPhase(ctx, "capture", "gradle", "ok", 200*time.Millisecond)

	rm := collectMetrics(t, reader)

	total := findMetric(rm, "scanforge.phase.total")

	require.NotNil(t, total)

	sum, ok := total.Data.(metricdata.Sum[int64])

	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)

	duration := findMetric(rm, "scanforge.phase.duration.seconds")

	require.NotNil(t, duration)

	hist, ok := duration.Data.(metricdata.Histogram[float64])

	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.InDelta(t, 0.3, hist.DataPoints[0].Sum, 0.01)
}

func TestPhaseMetrics_StatusSplitsSeries(t *testing.T) {
	t.Parallel()

	pm, reader := setupTestMeter(t)
	ctx := context.Background()

	pm.RecordPhase(ctx, "analyze", "analyze", "ok", time.Millisecond)
	pm.RecordPhase(ctx, "analyze", "analyze", "error", time.Millisecond)

	rm := collectMetrics(t, reader)

	total := findMetric(rm, "scanforge.phase.total")

	require.NotNil(t, total)

	sum, ok := total.Data.(metricdata.Sum[int64])

	require.True(t, ok)
	assert.Len(t, sum.DataPoints, 2)
}

func TestPhaseMetrics_AddCapturedFiles(t *testing.T) {
	t.Parallel()

	pm, reader := setupTestMeter(t)
	ctx := context.Background()

	pm.AddCapturedFiles(ctx, 5, "C")
	pm.AddCapturedFiles(ctx, 2, "C")
	pm.AddCapturedFiles(ctx, 1, "Java")

	rm := collectMetrics(t, reader)

	captured := findMetric(rm, "scanforge.captured.files.total")

	require.NotNil(t, captured)

	sum, ok := captured.Data.(metricdata.Sum[int64])

	require.True(t, ok)
	require.Len(t, sum.DataPoints, 2)

	var totalFiles int64
	for _, dp := range sum.DataPoints {
		totalFiles += dp.Value
	}

	assert.Equal(t, int64(8), totalFiles)
}
