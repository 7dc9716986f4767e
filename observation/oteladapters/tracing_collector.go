package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/dynamic-observations-go/observation"
)

const (
	statusDescriptionFailed    = "observation failed"
	statusDescriptionCancelled = "observation cancelled"
	statusDescriptionTimeout   = "observation timed out"
	attrStatus                 = "status"
)

// TracingCollector implements observation.TracingCollector on the OpenTelemetry tracing API.
// Spans are started as children of the span in the given context, if any.
type TracingCollector struct {
	tracer   trace.Tracer
	spanKind trace.SpanKind
}

// TracingCollectorOption defines a functional option for configuring a TracingCollector.
type TracingCollectorOption func(*TracingCollector)

// WithSpanKind sets the kind of every started span. The default is trace.SpanKindInternal.
func WithSpanKind(kind trace.SpanKind) TracingCollectorOption {
	return func(t *TracingCollector) {
		t.spanKind = kind
	}
}

// NewTracingCollector creates a TracingCollector starting spans with tracer.
func NewTracingCollector(tracer trace.Tracer, options ...TracingCollectorOption) *TracingCollector {
	t := &TracingCollector{
		tracer:   tracer,
		spanKind: trace.SpanKindInternal,
	}

	for _, option := range options {
		option(t)
	}

	return t
}

// StartSpan implements observation.TracingCollector.
func (t *TracingCollector) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, observation.SpanContext) {
	spanCtx, span := t.tracer.Start(
		ctx,
		name,
		trace.WithSpanKind(t.spanKind),
		trace.WithAttributes(toAttributes(attrs)...),
	)

	return spanCtx, &OTelSpanContext{span: span}
}

// FinishSpan implements observation.TracingCollector. Span handles from other collectors are ignored.
func (t *TracingCollector) FinishSpan(spanCtx observation.SpanContext, status string, attrs map[string]string) {
	otelSpanCtx, ok := spanCtx.(*OTelSpanContext)
	if !ok {
		return
	}

	otelSpanCtx.span.SetAttributes(toAttributes(attrs)...)
	otelSpanCtx.SetStatus(status)
	otelSpanCtx.span.End()
}

// OTelSpanContext implements observation.SpanContext by wrapping an OpenTelemetry span.
type OTelSpanContext struct {
	span trace.Span
}

// Span returns the wrapped OpenTelemetry span.
func (s *OTelSpanContext) Span() trace.Span {
	return s.span
}

// SetStatus maps status strings to OpenTelemetry status codes. Unknown status strings are
// recorded as a "status" attribute.
func (s *OTelSpanContext) SetStatus(status string) {
	switch status {
	case "ok", "success":
		s.span.SetStatus(codes.Ok, "")
	case "error", "failed":
		s.span.SetStatus(codes.Error, statusDescriptionFailed)
	case "cancelled", "canceled":
		s.span.SetStatus(codes.Error, statusDescriptionCancelled)
	case "timeout":
		s.span.SetStatus(codes.Error, statusDescriptionTimeout)
	default:
		s.span.SetAttributes(attribute.String(attrStatus, status))
	}
}

// AddAttribute implements observation.SpanContext.
func (s *OTelSpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

var (
	_ observation.TracingCollector = (*TracingCollector)(nil)
	_ observation.SpanContext      = (*OTelSpanContext)(nil)
)
