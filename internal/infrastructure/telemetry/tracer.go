package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerInterface is what the service decorators program against. The
// map-based attribute form keeps them free of otel attribute plumbing.
type TracerInterface interface {
	StartSpanWithAttributes(ctx context.Context, spanName string, attrs map[string]interface{}, opts ...trace.SpanStartOption) (context.Context, trace.Span)
	RecordError(span trace.Span, err error, description string)
	AddEvent(span trace.Span, name string, attrs map[string]interface{})
	SetAttributes(span trace.Span, attrs map[string]interface{})
}

// OpenTelemetryTracer is the production TracerInterface, backed by the
// globally registered tracer provider.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

func NewOpenTelemetryTracer(name string) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: otel.Tracer(name)}
}

func (t *OpenTelemetryTracer) StartSpanWithAttributes(ctx context.Context, spanName string, attrs map[string]interface{}, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	opts = append(opts, trace.WithAttributes(attrsFromMap(attrs)...))
	return t.tracer.Start(ctx, spanName, opts...)
}

// RecordError marks the span failed. A nil error is a no-op so callers
// can pass through their return value unconditionally.
func (t *OpenTelemetryTracer) RecordError(span trace.Span, err error, description string) {
	if err == nil {
		return
	}
	span.RecordError(err, trace.WithAttributes(
		attribute.String("error.description", description),
	))
	span.SetStatus(codes.Error, err.Error())
}

func (t *OpenTelemetryTracer) AddEvent(span trace.Span, name string, attrs map[string]interface{}) {
	span.AddEvent(name, trace.WithAttributes(attrsFromMap(attrs)...))
}

func (t *OpenTelemetryTracer) SetAttributes(span trace.Span, attrs map[string]interface{}) {
	span.SetAttributes(attrsFromMap(attrs)...)
}

func attrsFromMap(attrs map[string]interface{}) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			out = append(out, attribute.String(k, val))
		case bool:
			out = append(out, attribute.Bool(k, val))
		case int:
			out = append(out, attribute.Int(k, val))
		case int64:
			out = append(out, attribute.Int64(k, val))
		case float64:
			out = append(out, attribute.Float64(k, val))
		case []string:
			out = append(out, attribute.StringSlice(k, val))
		default:
			out = append(out, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	return out
}
