// Package telemetry sets up tracing and the gRPC health endpoint.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Tracing describes where spans go and how many of them are kept.
type Tracing struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is an OTLP/HTTP collector URL. Empty disables export.
	Endpoint string
	// SampleRatio is the share of new root traces recorded, in [0, 1].
	// Requests that arrive with a sampled parent are always kept.
	SampleRatio float64
}

// Sampler returns the parent-based ratio sampler for t.
func (t Tracing) Sampler() (sdktrace.Sampler, error) {
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		return nil, fmt.Errorf("sample ratio %v outside [0, 1]", t.SampleRatio)
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(t.SampleRatio)), nil
}

// SetupTracing registers a global tracer provider for t. Without an endpoint
// the no-op provider stays in place.
//
// The returned shutdown function flushes pending spans.
func SetupTracing(ctx context.Context, t Tracing) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	sampler, err := t.Sampler()
	if err != nil {
		return noop, err
	}
	endpoint := strings.TrimSpace(t.Endpoint)
	if endpoint == "" {
		return noop, nil
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(t.ServiceName)}
	if t.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(t.ServiceVersion))
	}
	res := resource.NewSchemaless(attrs...)

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return noop, fmt.Errorf("otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}
