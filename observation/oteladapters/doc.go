// Package oteladapters provides OpenTelemetry implementations of the dependency-free
// observability interfaces of package observation.
//
//   - MetricsCollector: histograms, counters and gauges from a metric.Meter
//   - TracingCollector and OTelSpanContext: spans from a trace.Tracer
//   - SlogBridgeLogger: log/slog through the otelslog bridge, with trace correlation
//   - OTelLogger: records emitted directly on a log.Logger
//
// Wiring with the handlers and registry packages:
//
//	tracingHandler, _ := handlers.NewTracingHandler(oteladapters.NewTracingCollector(tracer))
//	reg, _ := registry.New(
//		registry.WithHandlers(tracingHandler),
//		registry.WithMetrics(oteladapters.NewMetricsCollector(meter)),
//	)
package oteladapters
