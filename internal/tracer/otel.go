package tracer

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// otelBridge mirrors trace.jsonl events into OpenTelemetry spans exported
// via OTLP/HTTP, per SPEC_FULL.md's Tracer domain-stack wiring. trace.jsonl
// remains the source of truth; this is an additive observability surface.
type otelBridge struct {
	tracer trace.Tracer
	shut   func(context.Context) error
}

func newOTELBridge(endpoint string) (*otelBridge, error) {
	exp, err := otlptracehttp.New(context.Background(), otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName("cortex"),
	))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return &otelBridge{
		tracer: provider.Tracer("cortex/tracer"),
		shut:   provider.Shutdown,
	}, nil
}

func (b *otelBridge) record(runID, event string, fields map[string]any) {
	_, span := b.tracer.Start(context.Background(), event)
	span.SetAttributes(attribute.String("run_id", runID))
	for k, v := range fields {
		span.SetAttributes(attribute.String(k, fmt.Sprintf("%v", v)))
	}
	span.End()
}

func (b *otelBridge) startSpan(runID, name string) func() {
	_, span := b.tracer.Start(context.Background(), name)
	span.SetAttributes(attribute.String("run_id", runID))
	return func() { span.End() }
}

// Shutdown flushes any buffered spans; called by Tracer.Shutdown.
func (b *otelBridge) Shutdown() {
	if b == nil || b.shut == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = b.shut(ctx)
}

// Shutdown flushes the attached OTEL bridge, if any.
func (t *Tracer) Shutdown() {
	if t.otel != nil {
		t.otel.Shutdown()
	}
}
