package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/dynamic-observations-go/observation"
	"github.com/AntonStoeckl/dynamic-observations-go/observation/postgresengine/internal/adapters"
)

const (
	defaultTableName = "observation_samples"
	dialectPostgres  = "postgres"
	castJsonb        = "?::jsonb"

	colSampleID   = "sample_id"
	colMetric     = "metric"
	colKind       = "kind"
	colLabels     = "labels"
	colValue      = "value"
	colRecordedAt = "recorded_at"

	logMsgSQLExecuted     = "executed sql for: "
	logMsgAppendFailed    = "failed to append observation samples"
	logMsgQueryFailed     = "failed to query observation samples"
	logMsgCloseRowsFailed = "failed to close database rows"
	logAttrError          = "error"
	logAttrQuery          = "query"
	logAttrMetric         = "metric"
	logAttrKind           = "kind"
	logAttrDurationMS     = "duration_ms"
	logActionAppend       = "append"
	logActionQuery        = "query"
	logActionCreateTable  = "create table"
)

const createTableStatementFmt = `CREATE TABLE IF NOT EXISTS %[1]s (
	sample_id uuid PRIMARY KEY,
	metric text NOT NULL,
	kind text NOT NULL,
	labels jsonb NOT NULL DEFAULT '{}'::jsonb,
	value double precision NOT NULL,
	recorded_at timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (metric, recorded_at)`

var (
	// ErrNilDatabaseConnection is returned when a constructor is called without a database handle.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrEmptyTableName is returned by WithTableName for an empty name.
	ErrEmptyTableName = errors.New("table name must not be empty")

	// ErrInvalidTableName is returned by WithTableName for a name that is not "table" or "schema.table".
	ErrInvalidTableName = errors.New("table name must be table or schema.table")

	// ErrNilNowFunc is returned by WithNowFunc for a nil function.
	ErrNilNowFunc = errors.New("now function must not be nil")

	// ErrBuildingQueryFailed wraps goqu and encoding failures.
	ErrBuildingQueryFailed = errors.New("building the query failed")

	// ErrAppendingSamplesFailed wraps insert failures.
	ErrAppendingSamplesFailed = errors.New("appending samples failed")

	// ErrCreatingTableFailed wraps DDL failures.
	ErrCreatingTableFailed = errors.New("creating the samples table failed")

	// ErrQueryingSamplesFailed wraps select failures.
	ErrQueryingSamplesFailed = errors.New("querying samples failed")

	// ErrScanningDBRowFailed wraps row scan and decoding failures.
	ErrScanningDBRowFailed = errors.New("scanning db row failed")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SampleStore appends observation samples to a PostgreSQL table.
type SampleStore struct {
	db               adapters.DBAdapter
	tableName        string
	schema           string
	table            string
	now              func() time.Time
	logger           observation.Logger
	contextualLogger observation.ContextualLogger
}

// NewSampleStoreFromPGXPool creates a SampleStore using a pgx Pool with optional configuration.
func NewSampleStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*SampleStore, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newSampleStore(adapters.NewPGXAdapter(db), options...)
}

// NewSampleStoreFromSQLDB creates a SampleStore using a sql.DB with optional configuration.
func NewSampleStoreFromSQLDB(db *sql.DB, options ...Option) (*SampleStore, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newSampleStore(adapters.NewSQLAdapter(db), options...)
}

// NewSampleStoreFromSQLX creates a SampleStore using a sqlx.DB with optional configuration.
func NewSampleStoreFromSQLX(db *sqlx.DB, options ...Option) (*SampleStore, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newSampleStore(adapters.NewSQLXAdapter(db), options...)
}

func newSampleStore(db adapters.DBAdapter, options ...Option) (*SampleStore, error) {
	s := &SampleStore{
		db:        db,
		tableName: defaultTableName,
		table:     defaultTableName,
		now:       time.Now,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// TableName returns the samples table.
func (s *SampleStore) TableName() string {
	return s.tableName
}

// CreateTable creates the samples table and its (metric, recorded_at) index if they do not exist.
// The index lives in the table's schema.
func (s *SampleStore) CreateTable(ctx context.Context) error {
	statement := fmt.Sprintf(createTableStatementFmt,
		s.quotedTable(),
		pq.QuoteIdentifier(s.table+"_metric_recorded_at_idx"),
	)

	start := time.Now()
	_, err := s.db.Exec(ctx, statement)
	s.logQueryWithDuration(ctx, statement, logActionCreateTable, time.Since(start))

	if err != nil {
		return errors.Join(ErrCreatingTableFailed, err)
	}

	return nil
}

// RecordDuration implements observation.MetricsCollector.
func (s *SampleStore) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.RecordDurationContext(context.Background(), metric, duration, labels)
}

// RecordDurationContext implements observation.ContextualMetricsCollector.
func (s *SampleStore) RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	s.record(ctx, metric, KindDuration, duration.Seconds(), labels)
}

// IncrementCounter implements observation.MetricsCollector.
func (s *SampleStore) IncrementCounter(metric string, labels map[string]string) {
	s.IncrementCounterContext(context.Background(), metric, labels)
}

// IncrementCounterContext implements observation.ContextualMetricsCollector.
func (s *SampleStore) IncrementCounterContext(ctx context.Context, metric string, labels map[string]string) {
	s.record(ctx, metric, KindCounter, 1, labels)
}

// RecordValue implements observation.MetricsCollector.
func (s *SampleStore) RecordValue(metric string, value float64, labels map[string]string) {
	s.RecordValueContext(context.Background(), metric, value, labels)
}

// RecordValueContext implements observation.ContextualMetricsCollector.
func (s *SampleStore) RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string) {
	s.record(ctx, metric, KindValue, value, labels)
}

func (s *SampleStore) record(ctx context.Context, metric string, kind SampleKind, value float64, labels map[string]string) {
	sample, err := s.NewSample(metric, kind, value, labels)
	if err == nil {
		err = s.Append(ctx, sample)
	}

	if err != nil {
		s.logError(ctx, logMsgAppendFailed, err, logAttrMetric, metric, logAttrKind, string(kind))
	}
}

// NewSample creates a Sample with a fresh UUIDv7 and the store's current time.
func (s *SampleStore) NewSample(metric string, kind SampleKind, value float64, labels map[string]string) (Sample, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Sample{}, err
	}

	copied := make(map[string]string, len(labels))
	for k, v := range labels {
		copied[k] = v
	}

	return Sample{
		ID:         id,
		Metric:     metric,
		Kind:       kind,
		Labels:     copied,
		Value:      value,
		RecordedAt: s.now(),
	}, nil
}

// Append inserts samples in one statement.
func (s *SampleStore) Append(ctx context.Context, samples ...Sample) error {
	if len(samples) == 0 {
		return nil
	}

	sqlQuery, err := s.buildInsertQuery(samples)
	if err != nil {
		return err
	}

	start := time.Now()
	_, execErr := s.db.Exec(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, logActionAppend, time.Since(start))

	if execErr != nil {
		return errors.Join(ErrAppendingSamplesFailed, execErr)
	}

	return nil
}

// Samples returns all samples of metric ordered by recording time.
func (s *SampleStore) Samples(ctx context.Context, metric string) ([]Sample, error) {
	sqlQuery, err := s.buildSelectQuery(metric)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, queryErr := s.db.Query(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, logActionQuery, time.Since(start))

	if queryErr != nil {
		s.logError(ctx, logMsgQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return nil, errors.Join(ErrQueryingSamplesFailed, queryErr)
	}
	defer s.closeRows(ctx, rows)

	return s.scanSamples(rows)
}

func (s *SampleStore) scanSamples(rows adapters.DBRows) ([]Sample, error) {
	samples := make([]Sample, 0)

	for rows.Next() {
		var (
			id         string
			sample     Sample
			kind       string
			labelsJSON []byte
		)

		if err := rows.Scan(&id, &sample.Metric, &kind, &labelsJSON, &sample.Value, &sample.RecordedAt); err != nil {
			return nil, errors.Join(ErrScanningDBRowFailed, err)
		}

		parsedID, err := uuid.Parse(id)
		if err != nil {
			return nil, errors.Join(ErrScanningDBRowFailed, err)
		}

		if err := json.Unmarshal(labelsJSON, &sample.Labels); err != nil {
			return nil, errors.Join(ErrScanningDBRowFailed, err)
		}

		sample.ID = parsedID
		sample.Kind = SampleKind(kind)
		samples = append(samples, sample)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrQueryingSamplesFailed, err)
	}

	return samples, nil
}

func (s *SampleStore) buildInsertQuery(samples []Sample) (string, error) {
	records := make([]any, 0, len(samples))

	for _, sample := range samples {
		labels := sample.Labels
		if labels == nil {
			labels = map[string]string{}
		}

		labelsJSON, err := json.Marshal(labels)
		if err != nil {
			return "", errors.Join(ErrBuildingQueryFailed, err)
		}

		records = append(records, goqu.Record{
			colSampleID:   sample.ID.String(),
			colMetric:     sample.Metric,
			colKind:       string(sample.Kind),
			colLabels:     goqu.L(castJsonb, string(labelsJSON)),
			colValue:      sample.Value,
			colRecordedAt: sample.RecordedAt.UTC(),
		})
	}

	sqlQuery, _, err := goqu.Dialect(dialectPostgres).
		Insert(s.tableIdentifier()).
		Rows(records...).
		ToSQL()
	if err != nil {
		return "", errors.Join(ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}

func (s *SampleStore) buildSelectQuery(metric string) (string, error) {
	sqlQuery, _, err := goqu.Dialect(dialectPostgres).
		From(s.tableIdentifier()).
		Select(
			goqu.L(`"`+colSampleID+`"::text`),
			goqu.C(colMetric),
			goqu.C(colKind),
			goqu.C(colLabels),
			goqu.C(colValue),
			goqu.C(colRecordedAt),
		).
		Where(goqu.C(colMetric).Eq(metric)).
		Order(goqu.C(colRecordedAt).Asc(), goqu.C(colSampleID).Asc()).
		ToSQL()
	if err != nil {
		return "", errors.Join(ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}

// tableIdentifier is the table as goqu renders it, schema-qualified when a schema was configured.
func (s *SampleStore) tableIdentifier() exp.IdentifierExpression {
	if s.schema == "" {
		return goqu.T(s.table)
	}

	return goqu.S(s.schema).Table(s.table)
}

// quotedTable quotes schema and table separately, the same way goqu renders tableIdentifier.
func (s *SampleStore) quotedTable() string {
	if s.schema == "" {
		return pq.QuoteIdentifier(s.table)
	}

	return pq.QuoteIdentifier(s.schema) + "." + pq.QuoteIdentifier(s.table)
}

func (s *SampleStore) closeRows(ctx context.Context, rows adapters.DBRows) {
	if err := rows.Close(); err != nil {
		s.logError(ctx, logMsgCloseRowsFailed, err)
	}
}

func (s *SampleStore) logQueryWithDuration(ctx context.Context, sqlQuery, action string, duration time.Duration) {
	args := []any{logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery}

	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, args...)
		return
	}

	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+action, args...)
	}
}

func (s *SampleStore) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, msg, allArgs...)
		return
	}

	if s.logger != nil {
		s.logger.Error(msg, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

var _ observation.ContextualMetricsCollector = (*SampleStore)(nil)
