package testdoubles

import (
	"sync"
	"time"

	"github.com/AntonStoeckl/dynamic-observations-go/observation"
)

// ManualClock is an observation.Clock that only moves when told to.
type ManualClock struct {
	now time.Duration
	mu  sync.Mutex
}

// NewManualClock creates a ManualClock reading start.
func NewManualClock(start time.Duration) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current reading.
func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// Add advances the clock by d.
func (c *ManualClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now += d
}

// Set moves the clock to reading.
func (c *ManualClock) Set(reading time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = reading
}

var _ observation.Clock = (*ManualClock)(nil)
