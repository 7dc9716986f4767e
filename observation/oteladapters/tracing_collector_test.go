package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/dynamic-observations-go/observation/oteladapters"
	"github.com/AntonStoeckl/dynamic-observations-go/testutil/observation/testdoubles"
)

func spanAttr(span tracetest.SpanStub, key string) (string, bool) {
	for _, kv := range span.Attributes {
		if string(kv.Key) == key {
			return kv.Value.AsString(), true
		}
	}

	return "", false
}

func Test_TracingCollector_StartAndFinishSpan(t *testing.T) {
	providers := newProviders(t)
	collector := oteladapters.NewTracingCollector(providers.TracerProvider.Tracer("test"))

	ctx, spanCtx := collector.StartSpan(context.Background(), "svc.call", map[string]string{"method": "GET"})
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid(), "returned context carries the span")

	spanCtx.AddAttribute("request_id", "r-1")
	collector.FinishSpan(spanCtx, "success", map[string]string{"duration_ms": "1.00"})

	spans := providers.Spans()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, "svc.call", span.Name)
	assert.Equal(t, trace.SpanKindInternal, span.SpanKind)
	assert.Equal(t, codes.Ok, span.Status.Code)

	for key, expected := range map[string]string{"method": "GET", "request_id": "r-1", "duration_ms": "1.00"} {
		value, found := spanAttr(span, key)
		assert.True(t, found, "attribute %s", key)
		assert.Equal(t, expected, value)
	}
}

func Test_TracingCollector_StatusMapping(t *testing.T) {
	testCases := []struct {
		status              string
		expectedCode        codes.Code
		expectedDescription string
		expectedStatusAttr  bool
	}{
		{status: "success", expectedCode: codes.Ok},
		{status: "ok", expectedCode: codes.Ok},
		{status: "error", expectedCode: codes.Error, expectedDescription: "observation failed"},
		{status: "canceled", expectedCode: codes.Error, expectedDescription: "observation cancelled"},
		{status: "timeout", expectedCode: codes.Error, expectedDescription: "observation timed out"},
		{status: "partial", expectedCode: codes.Unset, expectedStatusAttr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.status, func(t *testing.T) {
			providers := newProviders(t)
			collector := oteladapters.NewTracingCollector(providers.TracerProvider.Tracer("test"))

			_, spanCtx := collector.StartSpan(context.Background(), "svc.call", nil)
			collector.FinishSpan(spanCtx, tc.status, nil)

			spans := providers.Spans()
			require.Len(t, spans, 1)
			assert.Equal(t, tc.expectedCode, spans[0].Status.Code)
			assert.Equal(t, tc.expectedDescription, spans[0].Status.Description)

			status, found := spanAttr(spans[0], "status")
			assert.Equal(t, tc.expectedStatusAttr, found)
			if tc.expectedStatusAttr {
				assert.Equal(t, tc.status, status)
			}
		})
	}
}

func Test_TracingCollector_ChildSpanAndSpanKind(t *testing.T) {
	providers := newProviders(t)
	collector := oteladapters.NewTracingCollector(
		providers.TracerProvider.Tracer("test"),
		oteladapters.WithSpanKind(trace.SpanKindServer),
	)

	parentCtx, parent := collector.StartSpan(context.Background(), "parent", nil)
	_, child := collector.StartSpan(parentCtx, "child", nil)
	collector.FinishSpan(child, "success", nil)
	collector.FinishSpan(parent, "success", nil)

	spans := providers.Spans()
	require.Len(t, spans, 2)
	assert.Equal(t, "child", spans[0].Name)
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	assert.Equal(t, spans[1].SpanContext.TraceID(), spans[0].SpanContext.TraceID())
}

func Test_TracingCollector_IgnoresForeignSpanContext(t *testing.T) {
	providers := newProviders(t)
	collector := oteladapters.NewTracingCollector(providers.TracerProvider.Tracer("test"))

	assert.NotPanics(t, func() {
		collector.FinishSpan(&testdoubles.SpySpanContext{}, "success", nil)
		collector.FinishSpan(nil, "success", nil)
	})
	assert.Empty(t, providers.Spans())
}

func Test_OTelSpanContext_ExposesSpan(t *testing.T) {
	providers := newProviders(t)
	collector := oteladapters.NewTracingCollector(providers.TracerProvider.Tracer("test"))

	_, spanCtx := collector.StartSpan(context.Background(), "svc.call", nil)
	otelSpanCtx, ok := spanCtx.(*oteladapters.OTelSpanContext)
	require.True(t, ok)

	otelSpanCtx.Span().SetAttributes(attribute.Int("retries", 2))
	collector.FinishSpan(spanCtx, "success", nil)

	spans := providers.Spans()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Attributes, attribute.Int("retries", 2))
}
