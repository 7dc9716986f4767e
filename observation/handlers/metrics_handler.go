package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/AntonStoeckl/dynamic-observations-go/observation"
)

const (
	metricObservationStarted = "observation_started_total"
	metricObservationErrors  = "observation_errors_total"
	metricObservationActive  = "observation_active"
)

// MetricsHandler counts started and failed observations and tracks the number of active ones
// per observation name. Durations are not recorded here; the registry's timers do that.
//
// Metrics:
//   - observation_started_total{observation}
//   - observation_errors_total{observation, error_type}
//   - observation_active{observation} (gauge)
type MetricsHandler struct {
	observation.BaseHandler
	collector observation.MetricsCollector
	active    map[string]int64
	mu        sync.Mutex
}

// NewMetricsHandler creates a MetricsHandler writing to collector.
// If collector also implements observation.ContextualMetricsCollector, the parent context.Context
// stored in the handler Context is passed along.
func NewMetricsHandler(collector observation.MetricsCollector) (*MetricsHandler, error) {
	if collector == nil {
		return nil, ErrNilMetricsCollector
	}

	return &MetricsHandler{
		collector: collector,
		active:    make(map[string]int64),
	}, nil
}

// SupportsContext implements observation.Handler. Every observation is counted.
func (h *MetricsHandler) SupportsContext(*observation.Context) bool {
	return true
}

// OnStart implements observation.Handler.
func (h *MetricsHandler) OnStart(_ *observation.Observation, ctx *observation.Context) {
	eventCtx := eventContext(ctx)
	labels := map[string]string{attrObservation: ctx.Name()}

	h.incrementCounter(eventCtx, metricObservationStarted, labels)
	h.recordValue(eventCtx, metricObservationActive, float64(h.adjustActive(ctx.Name(), 1)), labels)
}

// OnError implements observation.Handler.
func (h *MetricsHandler) OnError(_ *observation.Observation, ctx *observation.Context, err error) {
	h.incrementCounter(eventContext(ctx), metricObservationErrors, map[string]string{
		attrObservation: ctx.Name(),
		attrErrorType:   errorType(err),
	})
}

// OnStop implements observation.Handler.
func (h *MetricsHandler) OnStop(_ *observation.Observation, ctx *observation.Context, _ observation.Timer, _ time.Duration) {
	labels := map[string]string{attrObservation: ctx.Name()}

	h.recordValue(eventContext(ctx), metricObservationActive, float64(h.adjustActive(ctx.Name(), -1)), labels)
}

// Active returns the number of started but not yet stopped observations named name.
func (h *MetricsHandler) Active(name string) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.active[name]
}

func (h *MetricsHandler) adjustActive(name string, delta int64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.active[name] += delta
	if h.active[name] < 0 {
		h.active[name] = 0 // repeated Stop calls
	}

	return h.active[name]
}

func (h *MetricsHandler) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if contextualCollector, ok := h.collector.(observation.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
		return
	}

	h.collector.IncrementCounter(metric, labels)
}

func (h *MetricsHandler) recordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if contextualCollector, ok := h.collector.(observation.ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metric, value, labels)
		return
	}

	h.collector.RecordValue(metric, value, labels)
}

var _ observation.Handler = (*MetricsHandler)(nil)
