package promadapters

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/dynamic-observations-go/observation"
)

const (
	helpDuration = "Observation duration in seconds"
	helpCounter  = "Observation event counter"
	helpValue    = "Observation current value"

	suffixSeconds = "_seconds"

	exemplarTraceID = "trace_id"

	logMsgLabelMismatch      = "prometheus sample dropped: label names differ from the registered vector"
	logMsgRegistrationFailed = "prometheus collector registration failed"
	logAttrMetric            = "metric"
	logAttrExpectedLabels    = "expected_labels"
	logAttrLabels            = "labels"
	logAttrError             = "error"
)

// ErrNilRegisterer is returned when NewMetricsCollector is called without a registerer.
var ErrNilRegisterer = errors.New("prometheus registerer must not be nil")

// ErrEmptyBuckets is returned when WithBuckets is called without bucket boundaries.
var ErrEmptyBuckets = errors.New("histogram buckets must not be empty")

// Option defines a functional option for configuring a MetricsCollector.
type Option func(*MetricsCollector) error

// WithNamespace prefixes every metric name with namespace.
func WithNamespace(namespace string) Option {
	return func(c *MetricsCollector) error {
		if namespace != "" {
			c.namespace = sanitizeMetricName(namespace)
		}

		return nil
	}
}

// WithBuckets sets the histogram bucket boundaries in seconds. The default is prometheus.DefBuckets.
func WithBuckets(buckets ...float64) Option {
	return func(c *MetricsCollector) error {
		if len(buckets) == 0 {
			return ErrEmptyBuckets
		}

		c.buckets = slices.Clone(buckets)

		return nil
	}
}

// WithLogger sets the logger that receives dropped samples and registration failures.
func WithLogger(logger observation.Logger) Option {
	return func(c *MetricsCollector) error {
		c.logger = logger
		return nil
	}
}

type vector[V prometheus.Collector] struct {
	vec        V
	labelNames []string
}

// MetricsCollector implements observation.ContextualMetricsCollector with Prometheus vectors.
// The context-aware methods attach the trace ID of a sampled OpenTelemetry span as an exemplar.
// It is safe for concurrent use.
type MetricsCollector struct {
	registerer prometheus.Registerer
	namespace  string
	buckets    []float64
	logger     observation.Logger
	histograms map[string]*vector[*prometheus.HistogramVec]
	counters   map[string]*vector[*prometheus.CounterVec]
	gauges     map[string]*vector[*prometheus.GaugeVec]
	mu         sync.Mutex
}

// NewMetricsCollector creates a MetricsCollector registering its vectors on registerer.
func NewMetricsCollector(registerer prometheus.Registerer, options ...Option) (*MetricsCollector, error) {
	if registerer == nil {
		return nil, ErrNilRegisterer
	}

	c := &MetricsCollector{
		registerer: registerer,
		buckets:    prometheus.DefBuckets,
		histograms: make(map[string]*vector[*prometheus.HistogramVec]),
		counters:   make(map[string]*vector[*prometheus.CounterVec]),
		gauges:     make(map[string]*vector[*prometheus.GaugeVec]),
	}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// RecordDuration implements observation.MetricsCollector.
func (c *MetricsCollector) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	c.RecordDurationContext(context.Background(), metric, duration, labels)
}

// RecordDurationContext implements observation.ContextualMetricsCollector.
func (c *MetricsCollector) RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	name := durationName(sanitizeMetricName(metric))
	labelNames, labelValues := splitLabels(labels)

	v, ok := lookup(c, c.histograms, name, labelNames, func() *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: c.namespace,
			Name:      name,
			Help:      helpDuration,
			Buckets:   c.buckets,
		}, labelNames)
	})
	if !ok {
		return
	}

	observer := v.vec.WithLabelValues(labelValues...)
	if exemplar, found := exemplarFrom(ctx); found {
		if exemplarObserver, isExemplarObserver := observer.(prometheus.ExemplarObserver); isExemplarObserver {
			exemplarObserver.ObserveWithExemplar(duration.Seconds(), exemplar)
			return
		}
	}

	observer.Observe(duration.Seconds())
}

// IncrementCounter implements observation.MetricsCollector.
func (c *MetricsCollector) IncrementCounter(metric string, labels map[string]string) {
	c.IncrementCounterContext(context.Background(), metric, labels)
}

// IncrementCounterContext implements observation.ContextualMetricsCollector.
func (c *MetricsCollector) IncrementCounterContext(ctx context.Context, metric string, labels map[string]string) {
	name := sanitizeMetricName(metric)
	labelNames, labelValues := splitLabels(labels)

	v, ok := lookup(c, c.counters, name, labelNames, func() *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      name,
			Help:      helpCounter,
		}, labelNames)
	})
	if !ok {
		return
	}

	counter := v.vec.WithLabelValues(labelValues...)
	if exemplar, found := exemplarFrom(ctx); found {
		if exemplarAdder, isExemplarAdder := counter.(prometheus.ExemplarAdder); isExemplarAdder {
			exemplarAdder.AddWithExemplar(1, exemplar)
			return
		}
	}

	counter.Inc()
}

// RecordValue implements observation.MetricsCollector.
func (c *MetricsCollector) RecordValue(metric string, value float64, labels map[string]string) {
	c.RecordValueContext(context.Background(), metric, value, labels)
}

// RecordValueContext implements observation.ContextualMetricsCollector. Gauges carry no exemplars.
func (c *MetricsCollector) RecordValueContext(_ context.Context, metric string, value float64, labels map[string]string) {
	name := sanitizeMetricName(metric)
	labelNames, labelValues := splitLabels(labels)

	v, ok := lookup(c, c.gauges, name, labelNames, func() *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: c.namespace,
			Name:      name,
			Help:      helpValue,
		}, labelNames)
	})
	if !ok {
		return
	}

	v.vec.WithLabelValues(labelValues...).Set(value)
}

// lookup returns the vector registered for name, creating and registering it on first use.
// It reports false when the sample must be dropped.
func lookup[V prometheus.Collector](
	c *MetricsCollector,
	vectors map[string]*vector[V],
	name string,
	labelNames []string,
	create func() V,
) (*vector[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, exists := vectors[name]; exists {
		if !slices.Equal(v.labelNames, labelNames) {
			c.logWarn(logMsgLabelMismatch,
				logAttrMetric, name,
				logAttrExpectedLabels, strings.Join(v.labelNames, ","),
				logAttrLabels, strings.Join(labelNames, ","),
			)

			return nil, false
		}

		return v, true
	}

	vec := create()
	if err := c.registerer.Register(vec); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if !errors.As(err, &alreadyRegistered) {
			c.logError(logMsgRegistrationFailed, logAttrMetric, name, logAttrError, err.Error())
			return nil, false
		}

		existing, sameKind := alreadyRegistered.ExistingCollector.(V)
		if !sameKind {
			c.logError(logMsgRegistrationFailed, logAttrMetric, name, logAttrError, err.Error())
			return nil, false
		}

		vec = existing
	}

	v := &vector[V]{vec: vec, labelNames: labelNames}
	vectors[name] = v

	return v, true
}

func (c *MetricsCollector) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *MetricsCollector) logError(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}

// exemplarFrom returns a trace_id exemplar when ctx carries a sampled span.
func exemplarFrom(ctx context.Context) (prometheus.Labels, bool) {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() || !spanCtx.IsSampled() {
		return nil, false
	}

	return prometheus.Labels{exemplarTraceID: spanCtx.TraceID().String()}, true
}

// splitLabels returns sanitized label names in sorted order and the matching values.
func splitLabels(labels map[string]string) ([]string, []string) {
	sanitized := make(map[string]string, len(labels))
	for key, value := range labels {
		sanitized[sanitizeLabelName(key)] = value
	}

	names := make([]string, 0, len(sanitized))
	for name := range sanitized {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([]string, 0, len(names))
	for _, name := range names {
		values = append(values, sanitized[name])
	}

	return names, values
}

func durationName(name string) string {
	if strings.HasSuffix(name, suffixSeconds) {
		return name
	}

	return name + suffixSeconds
}

// sanitizeMetricName maps name into [a-zA-Z_:][a-zA-Z0-9_:]*.
func sanitizeMetricName(name string) string {
	return sanitize(name, func(r rune) bool { return isLabelRune(r) || r == ':' })
}

// sanitizeLabelName maps name into [a-zA-Z_][a-zA-Z0-9_]*.
func sanitizeLabelName(name string) string {
	return sanitize(name, isLabelRune)
}

func sanitize(name string, valid func(r rune) bool) string {
	if name == "" {
		return "_"
	}

	var b strings.Builder
	b.Grow(len(name) + 1)

	if name[0] >= '0' && name[0] <= '9' {
		b.WriteByte('_')
	}

	for _, r := range name {
		if valid(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	return b.String()
}

func isLabelRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

var _ observation.ContextualMetricsCollector = (*MetricsCollector)(nil)
