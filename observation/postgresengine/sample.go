package postgresengine

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// SampleKind tells how a sample was recorded.
type SampleKind string

// Sample kinds.
const (
	KindDuration SampleKind = "duration"
	KindCounter  SampleKind = "counter"
	KindValue    SampleKind = "value"
)

// Sample is one stored row.
type Sample struct {
	ID         uuid.UUID
	Metric     string
	Kind       SampleKind
	Labels     map[string]string
	Value      float64
	RecordedAt time.Time
}

// Duration returns Value as a duration for KindDuration samples.
func (s Sample) Duration() time.Duration {
	return time.Duration(math.Round(s.Value * float64(time.Second)))
}
