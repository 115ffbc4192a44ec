// Package observability provides the pipeline's phase instrumentation: per
// phase spans, duration histograms, and capture counters, plus an optional
// diagnostics HTTP server for long-running invocations.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricPhasesTotal   = "scanforge.phase.total"
	metricPhaseDuration = "scanforge.phase.duration.seconds"
	metricCapturedFiles = "scanforge.captured.files.total"

	attrPhase    = "phase"
	attrMode     = "mode"
	attrStatus   = "status"
	attrLanguage = "language"

	statusOK    = "ok"
	statusError = "error"
)

// durationBucketBoundaries covers 10ms to 600s: captures of single
// translation units finish in milliseconds while full distributed builds run
// for minutes.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// PhaseMetrics holds the OTel instruments for pipeline phase telemetry.
type PhaseMetrics struct {
	phasesTotal   metric.Int64Counter
	phaseDuration metric.Float64Histogram
	capturedFiles metric.Int64Counter
}

// NewPhaseMetrics creates the phase instruments from the given meter.
func NewPhaseMetrics(mt metric.Meter) (*PhaseMetrics, error) {
	b := newMetricBuilder(mt)

	pm := &PhaseMetrics{
		phasesTotal:   b.counter(metricPhasesTotal, "Total number of pipeline phase executions", "{phase}"),
		phaseDuration: b.histogram(metricPhaseDuration, "Pipeline phase duration in seconds", "s", durationBucketBoundaries...),
		capturedFiles: b.counter(metricCapturedFiles, "Total number of captured source files", "{file}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return pm, nil
}

// RecordPhase records a completed phase with its mode, status, and duration.
func (pm *PhaseMetrics) RecordPhase(ctx context.Context, phase, modeTag, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrPhase, phase),
		attribute.String(attrMode, modeTag),
		attribute.String(attrStatus, status),
	)

	pm.phasesTotal.Add(ctx, 1, attrs)
	pm.phaseDuration.Record(ctx, duration.Seconds(), attrs)
}

// AddCapturedFiles counts captured source files by language.
func (pm *PhaseMetrics) AddCapturedFiles(ctx context.Context, n int64, language string) {
	pm.capturedFiles.Add(ctx, n, metric.WithAttributes(
		attribute.String(attrLanguage, language),
	))
}
