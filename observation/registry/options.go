package registry

import (
	"github.com/AntonStoeckl/dynamic-observations-go/observation"
)

// Option defines a functional option for configuring a Registry.
type Option func(*Registry) error

// WithClock sets the clock observations read their start and stop times from.
func WithClock(clock observation.Clock) Option {
	return func(r *Registry) error {
		if clock == nil {
			return ErrNilClock
		}

		r.clock = clock

		return nil
	}
}

// WithHandlers registers handlers in the given order.
func WithHandlers(handlers ...observation.Handler) Option {
	return func(r *Registry) error {
		for _, handler := range handlers {
			if handler == nil {
				return ErrNilHandler
			}
		}

		r.handlers = append(r.handlers, handlers...)

		return nil
	}
}

// WithObservationPredicate adds a predicate every observation name must pass to be enabled.
func WithObservationPredicate(predicate ObservationPredicate) Option {
	return func(r *Registry) error {
		if predicate == nil {
			return ErrNilObservationPredicate
		}

		r.predicates = append(r.predicates, predicate)

		return nil
	}
}

// WithDisabledPrefixes disables all observations whose name starts with one of prefixes.
func WithDisabledPrefixes(prefixes ...string) Option {
	return func(r *Registry) error {
		for _, prefix := range prefixes {
			if prefix == "" {
				return ErrEmptyDisabledPrefix
			}
		}

		r.disabledPrefixes = append(r.disabledPrefixes, prefixes...)

		return nil
	}
}

// WithCommonTags adds tags to every materialized timer, e.g. the service name or the environment.
func WithCommonTags(tags map[string]string) Option {
	return func(r *Registry) error {
		for key, value := range tags {
			if key == "" {
				return ErrEmptyCommonTagKey
			}

			r.commonTags[key] = value
		}

		return nil
	}
}

// WithLogger sets the logger for the Registry.
//
// Debug level: handler registration and timer creation
// Warn level: scopes closed out of order.
func WithLogger(logger observation.Logger) Option {
	return func(r *Registry) error {
		r.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Registry.
// It takes precedence over the plain logger where a context is available; the context is the
// parent context.Context stored in the observation's handler Context, if any.
func WithContextualLogger(logger observation.ContextualLogger) Option {
	return func(r *Registry) error {
		r.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the sink every materialized timer forwards its samples to. The Registry also
// counts out-of-order scope closes there.
func WithMetrics(collector observation.MetricsCollector) Option {
	return func(r *Registry) error {
		r.metricsCollector = collector
		return nil
	}
}
