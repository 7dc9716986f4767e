// Package promadapters provides a Prometheus implementation of observation.MetricsCollector.
//
// Every metric name gets one vector on the given prometheus.Registerer, created on first use:
// durations become a HistogramVec in seconds, counters a CounterVec and values a GaugeVec.
// Metric and label names are sanitized into the Prometheus character set. The label names of a
// vector are fixed by the first sample; later samples with a different label set are logged and
// dropped.
//
//	collector, _ := promadapters.NewMetricsCollector(prometheus.DefaultRegisterer,
//		promadapters.WithNamespace("orders"),
//	)
//	reg, _ := registry.New(registry.WithMetrics(collector))
package promadapters
