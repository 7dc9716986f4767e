package registry

import (
	"maps"
	"sync"
	"time"

	"github.com/AntonStoeckl/dynamic-observations-go/observation"
)

// Timer is the observation.Timer materialized by a Registry.
// It keeps count, total and max of the recorded durations and forwards every sample to the
// registry's metrics sink.
type Timer struct {
	name      string
	tags      map[string]string
	collector observation.MetricsCollector
	count     int64
	total     time.Duration
	max       time.Duration
	mu        sync.Mutex
}

func newTimer(name string, tags map[string]string, collector observation.MetricsCollector) *Timer {
	return &Timer{
		name:      name,
		tags:      tags,
		collector: collector,
	}
}

// Name implements observation.Timer.
func (t *Timer) Name() string {
	return t.name
}

// Tags implements observation.Timer. It returns a copy.
func (t *Timer) Tags() map[string]string {
	return maps.Clone(t.tags)
}

// Record implements observation.Timer.
func (t *Timer) Record(duration time.Duration) {
	t.mu.Lock()
	t.count++
	t.total += duration
	if duration > t.max {
		t.max = duration
	}
	t.mu.Unlock()

	if t.collector != nil {
		t.collector.RecordDuration(t.name, duration, t.Tags())
	}
}

// Count returns the number of recorded durations.
func (t *Timer) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.count
}

// TotalTime returns the sum of all recorded durations.
func (t *Timer) TotalTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.total
}

// Max returns the longest recorded duration.
func (t *Timer) Max() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.max
}

var _ observation.Timer = (*Timer)(nil)
