package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RunPhase executes fn inside a span named after the phase, tagged with the
// capture mode, and records a duration sample. Instrumentation is
// transparent: fn's error is returned unchanged whether or not telemetry is
// configured. A nil PhaseMetrics skips the metric sample.
func RunPhase(
	ctx context.Context,
	tracer trace.Tracer,
	pm *PhaseMetrics,
	phase, modeTag string,
	fn func(context.Context) error,
) error {
	ctx, span := tracer.Start(ctx, phase, trace.WithAttributes(
		attribute.String(attrMode, modeTag),
	))
	defer span.End()

	start := time.Now()

	err := fn(ctx)

	status := statusOK
	if err != nil {
		status = statusError

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if pm != nil {
		pm.RecordPhase(ctx, phase, modeTag, status, time.Since(start))
	}

	return err
}
