// Package otel records integrald activity as OpenTelemetry metrics and spans.
package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/integrald"
)

// Observer records one span plus counters and a latency histogram per
// integration.
type Observer struct {
	tracer trace.Tracer

	integrations metric.Int64Counter
	failures     metric.Int64Counter
	evaluations  metric.Int64Counter
	duration     metric.Float64Histogram
}

// NewObserver creates an observer bound to the provided meter/tracer. A nil
// tracer disables spans.
func NewObserver(meter metric.Meter, tracer trace.Tracer) (*Observer, error) {
	integrations, err := meter.Int64Counter(
		"integrald.integrations",
		metric.WithDescription("Number of integrations requested"),
	)
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter(
		"integrald.integration.failures",
		metric.WithDescription("Number of integrations that returned an error"),
	)
	if err != nil {
		return nil, err
	}
	evaluations, err := meter.Int64Counter(
		"integrald.integrand.evaluations",
		metric.WithDescription("Number of integrand evaluations"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"integrald.integration.duration",
		metric.WithDescription("Integration latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Observer{
		tracer:       tracer,
		integrations: integrations,
		failures:     failures,
		evaluations:  evaluations,
		duration:     duration,
	}, nil
}

// ObserveIntegration records one finished integration.
func (o *Observer) ObserveIntegration(ctx context.Context, observation integrald.Observation) {
	if o == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	success := observation.Category == integrald.CategoryNone
	attrs := []attribute.KeyValue{
		attribute.Bool("success", success),
		attribute.Bool("probe_failed", observation.ProbeFailed),
	}
	if !success {
		attrs = append(attrs, attribute.String("category", string(observation.Category)))
	}

	options := metric.WithAttributes(attrs...)
	o.integrations.Add(ctx, 1, options)
	if !success {
		o.failures.Add(ctx, 1, options)
	}
	o.evaluations.Add(ctx, int64(observation.Evaluations))
	o.duration.Record(ctx, observation.Duration.Seconds(), options)

	if o.tracer == nil {
		return
	}
	// Expressions are unbounded user input: spans only, never metric attributes.
	spanAttrs := append(attrs,
		attribute.String("integrald.expression", observation.Expression),
		attribute.Float64("integrald.lower", observation.Lower),
		attribute.Float64("integrald.upper", observation.Upper),
		attribute.Int("integrald.evaluations", observation.Evaluations),
		attribute.Int("integrald.intervals", observation.Intervals),
		attribute.Int("integrald.max_depth", observation.MaxDepth),
	)
	_, span := o.tracer.Start(ctx, "integrald.integrate",
		trace.WithAttributes(spanAttrs...),
		trace.WithTimestamp(time.Now().Add(-observation.Duration)),
	)
	if success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, string(observation.Category))
	}
	span.End()
}

var _ integrald.Observer = (*Observer)(nil)
