package config

import (
	"context"
	"errors"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	testServiceName    = "dynamic-observations-test"
	testServiceVersion = "test"
)

// InMemoryProviders holds OpenTelemetry providers whose telemetry stays in memory for inspection.
type InMemoryProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	SpanExporter   *tracetest.InMemoryExporter
	MetricReader   *sdkmetric.ManualReader
	Resource       *resource.Resource
}

// NewInMemoryProviders creates tracer and meter providers exporting synchronously into memory.
// The providers are not installed globally.
func NewInMemoryProviders() (*InMemoryProviders, error) {
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(testServiceName),
			semconv.ServiceVersionKey.String(testServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	spanExporter := tracetest.NewInMemoryExporter()
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(spanExporter),
		sdktrace.WithResource(res),
	)

	metricReader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(metricReader),
		sdkmetric.WithResource(res),
	)

	return &InMemoryProviders{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		SpanExporter:   spanExporter,
		MetricReader:   metricReader,
		Resource:       res,
	}, nil
}

// Spans returns all ended spans.
func (p *InMemoryProviders) Spans() tracetest.SpanStubs {
	return p.SpanExporter.GetSpans()
}

// CollectMetrics reads all metrics recorded so far.
func (p *InMemoryProviders) CollectMetrics(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := p.MetricReader.Collect(ctx, &rm)

	return rm, err
}

// FindMetric returns the metric named name from rm.
func FindMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, scopeMetrics := range rm.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}

	return metricdata.Metrics{}, false
}

// Shutdown shuts down both providers.
func (p *InMemoryProviders) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return errors.Join(
		p.TracerProvider.Shutdown(ctx),
		p.MeterProvider.Shutdown(ctx),
	)
}
