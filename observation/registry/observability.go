package registry

import (
	"context"

	"github.com/AntonStoeckl/dynamic-observations-go/observation"
)

// logDebug logs at debug level if the logger is configured.
func (r *Registry) logDebug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

// logWarnContext logs at warn level, preferring the contextual logger.
func (r *Registry) logWarnContext(ctx context.Context, msg string, args ...any) {
	if r.contextualLogger != nil {
		r.contextualLogger.WarnContext(ctx, msg, args...)
		return
	}

	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}

// incrementCounterContext increments a counter with context if the collector supports it.
func (r *Registry) incrementCounterContext(ctx context.Context, metric string, labels map[string]string) {
	if r.metricsCollector == nil {
		return
	}

	// Use context-aware method if available
	if contextualCollector, ok := r.metricsCollector.(observation.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
	} else {
		r.metricsCollector.IncrementCounter(metric, labels)
	}
}
