// Package observability wires the runtime authority's operations into
// OpenTelemetry tracing and RED (rate/errors/duration) metrics.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/openagents/runtime-authority"

// Provider holds the tracer and metric instruments used to instrument
// authority operations. It does not own a TracerProvider/MeterProvider:
// callers configure those globally (via otel.SetTracerProvider /
// otel.SetMeterProvider) and Provider reads from the global registry, the
// same pattern the rest of the corpus uses for test-friendliness.
type Provider struct {
	tracer            trace.Tracer
	requestCounter    metric.Int64Counter
	errorCounter      metric.Int64Counter
	durationHistogram metric.Float64Histogram
}

// New builds a Provider from the globally registered TracerProvider and
// MeterProvider.
func New() (*Provider, error) {
	meter := otel.Meter(instrumentationName)

	requestCounter, err := meter.Int64Counter("runtime.operations",
		metric.WithDescription("count of runtime authority operations"))
	if err != nil {
		return nil, fmt.Errorf("observability: create request counter: %w", err)
	}
	errorCounter, err := meter.Int64Counter("runtime.operation_errors",
		metric.WithDescription("count of runtime authority operation errors"))
	if err != nil {
		return nil, fmt.Errorf("observability: create error counter: %w", err)
	}
	durationHistogram, err := meter.Float64Histogram("runtime.operation_duration_seconds",
		metric.WithDescription("duration of runtime authority operations"))
	if err != nil {
		return nil, fmt.Errorf("observability: create duration histogram: %w", err)
	}

	return &Provider{
		tracer:            otel.Tracer(instrumentationName),
		requestCounter:    requestCounter,
		errorCounter:      errorCounter,
		durationHistogram: durationHistogram,
	}, nil
}

// TrackOperation starts a span named operation and returns a completion
// function the caller must invoke with the operation's eventual error
// (nil on success). Usage:
//
//	ctx, done := provider.TrackOperation(ctx, "append_event", attribute.String("run_id", runID))
//	defer func() { done(err) }()
func (p *Provider) TrackOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	ctx, span := p.tracer.Start(ctx, operation, trace.WithAttributes(attrs...))
	start := time.Now()

	return ctx, func(err error) {
		duration := time.Since(start).Seconds()
		opAttr := attribute.String("operation", operation)

		p.requestCounter.Add(ctx, 1, metric.WithAttributes(opAttr))
		p.durationHistogram.Record(ctx, duration, metric.WithAttributes(opAttr))

		if err != nil {
			p.errorCounter.Add(ctx, 1, metric.WithAttributes(opAttr))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}
