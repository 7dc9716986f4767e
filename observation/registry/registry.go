package registry

import (
	"context"
	"errors"
	"maps"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/AntonStoeckl/dynamic-observations-go/observation"
)

const (
	metricScopeMisuse           = "observation_scope_misuse_total"
	logMsgHandlerRegistered     = "observation handler registered"
	logMsgScopeClosedOutOfOrder = "observation scope closed out of order"
	logMsgTimerCreated          = "observation timer created"
	logAttrObservation          = "observation"
	logAttrCurrentObservation   = "current_observation"
	logAttrHandlerCount         = "handler_count"
	logAttrTags                 = "tags"
	labelObservation            = "observation"
	noCurrentObservation        = "none"
)

var (
	ErrNilClock                = errors.New("nil clock supplied")
	ErrNilHandler              = errors.New("nil observation handler supplied")
	ErrNilObservationPredicate = errors.New("nil observation predicate supplied")
	ErrEmptyDisabledPrefix     = errors.New("empty disabled name prefix supplied")
	ErrEmptyCommonTagKey       = errors.New("empty common tag key supplied")
)

// ObservationPredicate decides whether observations with the given name are enabled.
type ObservationPredicate func(name string) bool

// Registry is the default observation.Registry.
//
// It holds the registered handlers in registration order, decides enablement by predicates and
// disabled name prefixes, and materializes one Timer per observation name and low cardinality tag set.
// A Registry is safe for concurrent use.
type Registry struct {
	clock            observation.Clock
	handlers         []observation.Handler
	predicates       []ObservationPredicate
	disabledPrefixes []string
	commonTags       map[string]string
	timers           map[string]*Timer
	logger           observation.Logger
	contextualLogger observation.ContextualLogger
	metricsCollector observation.MetricsCollector
	mu               sync.RWMutex
}

// New creates a Registry. Without options it uses the system clock, has no handlers,
// and enables every observation.
func New(options ...Option) (*Registry, error) {
	r := &Registry{
		clock:      observation.NewSystemClock(),
		commonTags: make(map[string]string),
		timers:     make(map[string]*Timer),
	}

	for _, option := range options {
		if err := option(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// RegisterHandler appends handler. Observations that are already running keep the handler
// set they were started with.
func (r *Registry) RegisterHandler(handler observation.Handler) error {
	if handler == nil {
		return ErrNilHandler
	}

	r.mu.Lock()
	r.handlers = append(r.handlers, handler)
	handlerCount := len(r.handlers)
	r.mu.Unlock()

	r.logDebug(logMsgHandlerRegistered, logAttrHandlerCount, handlerCount)

	return nil
}

// IsObservationEnabled implements observation.Registry.
// A name is enabled unless it starts with a disabled prefix or any predicate rejects it.
func (r *Registry) IsObservationEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, prefix := range r.disabledPrefixes {
		if strings.HasPrefix(name, prefix) {
			return false
		}
	}

	for _, predicate := range r.predicates {
		if !predicate(name) {
			return false
		}
	}

	return true
}

// Clock implements observation.Registry.
func (r *Registry) Clock() observation.Clock {
	return r.clock
}

// Handlers implements observation.Registry. It returns a snapshot in registration order.
func (r *Registry) Handlers() []observation.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]observation.Handler(nil), r.handlers...)
}

// Timer implements observation.Registry.
// Common tags are added to tags; tags given by the observation win on key collisions.
func (r *Registry) Timer(name string, tags map[string]string) observation.Timer {
	return r.timer(name, tags)
}

func (r *Registry) timer(name string, tags map[string]string) *Timer {
	merged := r.withCommonTags(tags)
	key := timerKey(name, merged)

	r.mu.RLock()
	timer, exists := r.timers[key]
	r.mu.RUnlock()

	if exists {
		return timer
	}

	r.mu.Lock()
	timer, exists = r.timers[key]
	if !exists {
		timer = newTimer(name, merged, r.metricsCollector)
		r.timers[key] = timer
	}
	r.mu.Unlock()

	if !exists {
		r.logDebug(logMsgTimerCreated, logAttrObservation, name, logAttrTags, key)
	}

	return timer
}

// Timers returns all materialized timers ordered by name and tags.
func (r *Registry) Timers() []*Timer {
	r.mu.RLock()
	keys := make([]string, 0, len(r.timers))
	for key := range r.timers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	timers := make([]*Timer, 0, len(keys))
	for _, key := range keys {
		timers = append(timers, r.timers[key])
	}
	r.mu.RUnlock()

	return timers
}

// FindTimer returns the timer materialized for name and tags, if any. Common tags are applied
// the same way Timer applies them.
func (r *Registry) FindTimer(name string, tags map[string]string) (*Timer, bool) {
	key := timerKey(name, r.withCommonTags(tags))

	r.mu.RLock()
	defer r.mu.RUnlock()

	timer, exists := r.timers[key]

	return timer, exists
}

// CurrentObservation returns the observation currently published on slot, or nil.
func (r *Registry) CurrentObservation(slot *observation.Slot) *observation.Observation {
	return slot.Current()
}

// ScopeClosedOutOfOrder implements observation.ScopeMisuseReporter.
// It logs a warning and increments the scope misuse counter; the scope still restores its slot.
func (r *Registry) ScopeClosedOutOfOrder(closing *observation.Observation, current *observation.Observation) {
	ctx := observation.GetOrDefault[context.Context](closing.Context(), context.Background())

	r.logWarnContext(
		ctx,
		logMsgScopeClosedOutOfOrder,
		logAttrObservation, closing.Name(),
		logAttrCurrentObservation, describe(current),
	)

	r.incrementCounterContext(ctx, metricScopeMisuse, map[string]string{labelObservation: closing.Name()})
}

func describe(o *observation.Observation) string {
	if o == nil {
		return noCurrentObservation
	}

	return o.String()
}

func (r *Registry) withCommonTags(tags map[string]string) map[string]string {
	merged := make(map[string]string, len(r.commonTags)+len(tags))
	maps.Copy(merged, r.commonTags)
	maps.Copy(merged, tags)

	return merged
}

// timerKey builds a deterministic key from name and sorted tags.
// Every part is quoted, so separators inside names, keys or values cannot collide.
func timerKey(name string, tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(strconv.Quote(name))
	for _, key := range keys {
		b.WriteString(",")
		b.WriteString(strconv.Quote(key))
		b.WriteString("=")
		b.WriteString(strconv.Quote(tags[key]))
	}

	return b.String()
}

var (
	_ observation.Registry            = (*Registry)(nil)
	_ observation.ScopeMisuseReporter = (*Registry)(nil)
)
