// Package handlers provides reusable observation.Handler implementations.
//
//   - LoggingHandler logs the lifecycle through an observation.Logger or observation.ContextualLogger.
//   - TracingHandler emits one span per observation through an observation.TracingCollector.
//   - MetricsHandler counts started and failed observations and tracks active ones.
//   - RecoveringHandler wraps another handler and recovers its panics.
//
// Handlers that need a context.Context read the one stored in the observation's handler Context:
//
//	ctx := observation.NewContext()
//	observation.Put[context.Context](ctx, requestCtx)
//	o := observation.StartWithContext("orders.place", reg, ctx)
//
// Register the TracingHandler before handlers that should log or record with trace correlation.
package handlers
