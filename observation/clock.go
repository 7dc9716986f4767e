package observation

import "time"

// Clock supplies a monotonic time reading as an offset from an arbitrary origin.
// Only differences between two readings of the same Clock are meaningful.
type Clock interface {
	Now() time.Duration
}

// SystemClock reads Go's monotonic clock.
type SystemClock struct {
	origin time.Time
}

// NewSystemClock creates a SystemClock whose origin is the moment of construction.
func NewSystemClock() SystemClock {
	return SystemClock{origin: time.Now()}
}

// Now returns the monotonic time elapsed since the clock's origin.
// time.Since uses the monotonic reading, so wall clock adjustments do not affect it.
func (c SystemClock) Now() time.Duration {
	return time.Since(c.origin)
}
