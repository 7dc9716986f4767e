// Package postgresengine stores observation samples durably in PostgreSQL.
//
// SampleStore implements observation.MetricsCollector and observation.ContextualMetricsCollector by
// appending one row per recorded sample:
//
//	CREATE TABLE observation_samples (
//	    sample_id   uuid PRIMARY KEY,          -- UUIDv7, time ordered
//	    metric      text NOT NULL,
//	    kind        text NOT NULL,             -- duration | counter | value
//	    labels      jsonb NOT NULL,
//	    value       double precision NOT NULL, -- seconds for durations, 1 for counter increments
//	    recorded_at timestamptz NOT NULL
//	);
//
// The store runs on a pgxpool.Pool, a sql.DB or a sqlx.DB. Queries are built with goqu.
// The collector methods cannot return errors, so failed inserts are logged; use Append to
// handle errors explicitly.
package postgresengine
