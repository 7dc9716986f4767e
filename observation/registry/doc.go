// Package registry provides the default observation.Registry.
//
// A Registry holds the registered handlers, decides which observation names are enabled,
// and materializes one Timer per observation name and low cardinality tag set. Timers keep
// count, total and max and forward every sample to an optional observation.MetricsCollector,
// e.g. an OpenTelemetry, Prometheus, Postgres or Redis backed one from the sibling packages.
//
// Usage:
//
//	loggingHandler, err := handlers.NewLoggingHandler(handlers.WithLogger(slog.Default()))
//	// handle err
//
//	reg, err := registry.New(
//		registry.WithHandlers(loggingHandler),
//		registry.WithDisabledPrefixes("internal."),
//		registry.WithCommonTags(map[string]string{"service": "orders"}),
//		registry.WithMetrics(collector),
//	)
//
//	o := observation.Start("orders.place", reg)
//
// Scopes closed out of order are reported as a warning and counted as
// observation_scope_misuse_total.
package registry
