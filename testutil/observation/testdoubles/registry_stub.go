package testdoubles

import (
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AntonStoeckl/dynamic-observations-go/observation"
)

// TimerStub is an observation.Timer that keeps every recorded duration.
type TimerStub struct {
	name      string
	tags      map[string]string
	durations []time.Duration
	mu        sync.Mutex
}

// Name implements observation.Timer.
func (t *TimerStub) Name() string {
	return t.name
}

// Tags implements observation.Timer.
func (t *TimerStub) Tags() map[string]string {
	return maps.Clone(t.tags)
}

// Record implements observation.Timer.
func (t *TimerStub) Record(duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.durations = append(t.durations, duration)
}

// Durations returns a copy of all recorded durations.
func (t *TimerStub) Durations() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]time.Duration(nil), t.durations...)
}

// MisuseReport is one out-of-order scope close reported to RegistryStub.
type MisuseReport struct {
	Closing *observation.Observation
	Current *observation.Observation
}

// RegistryStub is a minimal observation.Registry for testing the core.
// Every name is enabled unless disabled with Disable.
type RegistryStub struct {
	clock          observation.Clock
	handlers       []observation.Handler
	disabled       map[string]bool
	timers         map[string]*TimerStub
	misuseReports  []MisuseReport
	enabledQueries int
	mu             sync.Mutex
}

// NewRegistryStub creates a RegistryStub reading clock and holding handlers in the given order.
func NewRegistryStub(clock observation.Clock, handlers ...observation.Handler) *RegistryStub {
	return &RegistryStub{
		clock:    clock,
		handlers: append([]observation.Handler(nil), handlers...),
		disabled: make(map[string]bool),
		timers:   make(map[string]*TimerStub),
	}
}

// Disable makes IsObservationEnabled return false for name.
func (r *RegistryStub) Disable(name string) *RegistryStub {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.disabled[name] = true

	return r
}

// Register appends handler to the registered handlers.
func (r *RegistryStub) Register(handler observation.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = append(r.handlers, handler)
}

// IsObservationEnabled implements observation.Registry.
func (r *RegistryStub) IsObservationEnabled(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.enabledQueries++

	return !r.disabled[name]
}

// EnabledQueries returns how often IsObservationEnabled was called.
func (r *RegistryStub) EnabledQueries() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.enabledQueries
}

// Clock implements observation.Registry.
func (r *RegistryStub) Clock() observation.Clock {
	return r.clock
}

// Handlers implements observation.Registry.
func (r *RegistryStub) Handlers() []observation.Handler {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]observation.Handler(nil), r.handlers...)
}

// Timer implements observation.Registry.
func (r *RegistryStub) Timer(name string, tags map[string]string) observation.Timer {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := TimerKey(name, tags)
	timer, exists := r.timers[key]
	if !exists {
		timer = &TimerStub{name: name, tags: maps.Clone(tags)}
		r.timers[key] = timer
	}

	return timer
}

// FindTimer returns the timer materialized for name and tags, if any.
func (r *RegistryStub) FindTimer(name string, tags map[string]string) (*TimerStub, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timer, exists := r.timers[TimerKey(name, tags)]

	return timer, exists
}

// TimerCount returns the number of materialized timers.
func (r *RegistryStub) TimerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.timers)
}

// ScopeClosedOutOfOrder implements observation.ScopeMisuseReporter.
func (r *RegistryStub) ScopeClosedOutOfOrder(closing *observation.Observation, current *observation.Observation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.misuseReports = append(r.misuseReports, MisuseReport{Closing: closing, Current: current})
}

// MisuseReports returns a copy of the reported out-of-order closes.
func (r *RegistryStub) MisuseReports() []MisuseReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]MisuseReport(nil), r.misuseReports...)
}

// TimerKey builds a deterministic key from a timer name and its tags.
func TimerKey(name string, tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, key := range keys {
		b.WriteString("|")
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(tags[key])
	}

	return b.String()
}

var (
	_ observation.Registry            = (*RegistryStub)(nil)
	_ observation.ScopeMisuseReporter = (*RegistryStub)(nil)
	_ observation.Timer               = (*TimerStub)(nil)
)
