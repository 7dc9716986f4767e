package postgresengine

import (
	"strings"
	"time"

	"github.com/AntonStoeckl/dynamic-observations-go/observation"
)

// Option defines a functional option for configuring a SampleStore.
type Option func(*SampleStore) error

// WithTableName sets the samples table, either "table" or "schema.table".
// The default is "observation_samples".
func WithTableName(tableName string) Option {
	return func(s *SampleStore) error {
		if tableName == "" {
			return ErrEmptyTableName
		}

		schema, table, err := splitTableName(tableName)
		if err != nil {
			return err
		}

		s.tableName = tableName
		s.schema = schema
		s.table = table

		return nil
	}
}

func splitTableName(tableName string) (schema, table string, err error) {
	parts := strings.Split(tableName, ".")

	for _, part := range parts {
		if part == "" {
			return "", "", ErrInvalidTableName
		}
	}

	switch len(parts) {
	case 1:
		return "", parts[0], nil
	case 2:
		return parts[0], parts[1], nil
	default:
		return "", "", ErrInvalidTableName
	}
}

// WithLogger sets the logger for the SampleStore.
//
// Debug level: SQL statements with execution timing
// Error level: failed inserts and queries.
func WithLogger(logger observation.Logger) Option {
	return func(s *SampleStore) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger that takes precedence over the plain logger.
func WithContextualLogger(logger observation.ContextualLogger) Option {
	return func(s *SampleStore) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithNowFunc sets the source of recorded_at timestamps. The default is time.Now.
func WithNowFunc(now func() time.Time) Option {
	return func(s *SampleStore) error {
		if now == nil {
			return ErrNilNowFunc
		}

		s.now = now

		return nil
	}
}
