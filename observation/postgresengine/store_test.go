package postgresengine_test

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-observations-go/observation"
	"github.com/AntonStoeckl/dynamic-observations-go/observation/postgresengine"
	"github.com/AntonStoeckl/dynamic-observations-go/observation/registry"
	"github.com/AntonStoeckl/dynamic-observations-go/testutil/observation/testdoubles"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newMockedStore(t *testing.T, options ...postgresengine.Option) (*postgresengine.SampleStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	options = append([]postgresengine.Option{postgresengine.WithNowFunc(func() time.Time { return fixedNow })}, options...)
	store, err := postgresengine.NewSampleStoreFromSQLDB(db, options...)
	require.NoError(t, err)

	return store, mock
}

func insertPattern(parts ...string) string {
	pattern := regexp.QuoteMeta(`INSERT INTO "observation_samples"`)
	for _, part := range parts {
		pattern += ".*" + regexp.QuoteMeta(part)
	}

	return pattern
}

func Test_NewSampleStore_ShouldFail_WithNilDatabaseConnection(t *testing.T) {
	testCases := []struct {
		name        string
		factoryFunc func() (*postgresengine.SampleStore, error)
	}{
		{
			name: "NewSampleStoreFromPGXPool with nil",
			factoryFunc: func() (*postgresengine.SampleStore, error) {
				return postgresengine.NewSampleStoreFromPGXPool(nil)
			},
		},
		{
			name: "NewSampleStoreFromSQLDB with nil",
			factoryFunc: func() (*postgresengine.SampleStore, error) {
				return postgresengine.NewSampleStoreFromSQLDB(nil)
			},
		},
		{
			name: "NewSampleStoreFromSQLX with nil",
			factoryFunc: func() (*postgresengine.SampleStore, error) {
				return postgresengine.NewSampleStoreFromSQLX(nil)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := tc.factoryFunc()

			assert.ErrorIs(t, err, postgresengine.ErrNilDatabaseConnection)
			assert.Nil(t, store)
		})
	}
}

func Test_NewSampleStore_ShouldFail_WithInvalidOptions(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = postgresengine.NewSampleStoreFromSQLDB(db, postgresengine.WithTableName(""))
	assert.ErrorIs(t, err, postgresengine.ErrEmptyTableName)

	for _, tableName := range []string{"a.b.c", ".samples", "metrics.", "metrics..samples"} {
		_, err = postgresengine.NewSampleStoreFromSQLDB(db, postgresengine.WithTableName(tableName))
		assert.ErrorIs(t, err, postgresengine.ErrInvalidTableName, tableName)
	}

	_, err = postgresengine.NewSampleStoreFromSQLDB(db, postgresengine.WithNowFunc(nil))
	assert.ErrorIs(t, err, postgresengine.ErrNilNowFunc)

	store, err := postgresengine.NewSampleStoreFromSQLDB(db, postgresengine.WithTableName("samples"))
	require.NoError(t, err)
	assert.Equal(t, "samples", store.TableName())
}

func Test_SampleStore_CreateTable(t *testing.T) {
	store, mock := newMockedStore(t, postgresengine.WithTableName("metric_samples"))

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "metric_samples"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.CreateTable(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_SampleStore_SchemaQualifiedTable_DDLAndQueriesAgree(t *testing.T) {
	store, mock := newMockedStore(t, postgresengine.WithTableName("metrics.samples"))
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "metrics"."samples"`) +
		".*" + regexp.QuoteMeta(`CREATE INDEX IF NOT EXISTS "samples_metric_recorded_at_idx" ON "metrics"."samples"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "metrics"."samples"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "metrics"."samples"`)).
		WillReturnRows(sqlmock.NewRows([]string{"sample_id", "metric", "kind", "labels", "value", "recorded_at"}))

	sample, err := store.NewSample("svc.call", postgresengine.KindCounter, 1, nil)
	require.NoError(t, err)

	require.NoError(t, store.CreateTable(ctx))
	require.NoError(t, store.Append(ctx, sample))

	samples, err := store.Samples(ctx, "svc.call")
	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.Equal(t, "metrics.samples", store.TableName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_SampleStore_CreateTable_Failure(t *testing.T) {
	store, mock := newMockedStore(t)

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

	err := store.CreateTable(context.Background())
	assert.ErrorIs(t, err, postgresengine.ErrCreatingTableFailed)
}

func Test_SampleStore_RecordDurationInsertsSample(t *testing.T) {
	store, mock := newMockedStore(t)

	mock.ExpectExec(insertPattern(
		`'duration'`,
		`'{"method":"GET"}'::jsonb`,
		`'svc.call'`,
		`'2024-05-01T12:00:00Z'`,
		`0.15`,
	)).WillReturnResult(sqlmock.NewResult(0, 1))

	store.RecordDuration("svc.call", 150*time.Millisecond, map[string]string{"method": "GET"})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_SampleStore_CounterAndValueKinds(t *testing.T) {
	store, mock := newMockedStore(t)
	ctx := context.Background()

	mock.ExpectExec(insertPattern(`'counter'`, `'{}'::jsonb`, `'jobs_total'`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertPattern(`'value'`, `'queue_depth'`, `7.5`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store.IncrementCounterContext(ctx, "jobs_total", nil)
	store.RecordValueContext(ctx, "queue_depth", 7.5, map[string]string{"queue": "a"})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_SampleStore_AppendMultipleSamplesInOneStatement(t *testing.T) {
	store, mock := newMockedStore(t)

	first, err := store.NewSample("svc.call", postgresengine.KindDuration, 0.1, nil)
	require.NoError(t, err)
	second, err := store.NewSample("svc.call", postgresengine.KindDuration, 0.2, nil)
	require.NoError(t, err)

	mock.ExpectExec(insertPattern(first.ID.String(), second.ID.String())).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, store.Append(context.Background(), first, second))
	require.NoError(t, store.Append(context.Background()), "appending nothing does not touch the database")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_SampleStore_NewSample(t *testing.T) {
	store, _ := newMockedStore(t)
	labels := map[string]string{"method": "GET"}

	sample, err := store.NewSample("svc.call", postgresengine.KindDuration, 0.15, labels)
	require.NoError(t, err)
	labels["method"] = "POST"

	assert.Equal(t, uuid.Version(7), sample.ID.Version())
	assert.Equal(t, fixedNow, sample.RecordedAt)
	assert.Equal(t, map[string]string{"method": "GET"}, sample.Labels, "labels are copied")
	assert.Equal(t, 150*time.Millisecond, sample.Duration())
}

func Test_SampleStore_Samples(t *testing.T) {
	store, mock := newMockedStore(t)
	id := uuid.Must(uuid.NewV7())

	mock.ExpectQuery(regexp.QuoteMeta(
		`FROM "observation_samples" WHERE ("metric" = 'svc.call') ORDER BY "recorded_at" ASC, "sample_id" ASC`,
	)).WillReturnRows(
		sqlmock.NewRows([]string{"sample_id", "metric", "kind", "labels", "value", "recorded_at"}).
			AddRow(id.String(), "svc.call", "duration", []byte(`{"method":"GET"}`), 0.15, fixedNow),
	)

	samples, err := store.Samples(context.Background(), "svc.call")
	require.NoError(t, err)
	require.Len(t, samples, 1)

	assert.Equal(t, postgresengine.Sample{
		ID:         id,
		Metric:     "svc.call",
		Kind:       postgresengine.KindDuration,
		Labels:     map[string]string{"method": "GET"},
		Value:      0.15,
		RecordedAt: fixedNow,
	}, samples[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_SampleStore_Samples_Failures(t *testing.T) {
	columns := []string{"sample_id", "metric", "kind", "labels", "value", "recorded_at"}

	testCases := []struct {
		name        string
		expect      func(mock sqlmock.Sqlmock)
		expectedErr error
	}{
		{
			name: "query fails",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset"))
			},
			expectedErr: postgresengine.ErrQueryingSamplesFailed,
		},
		{
			name: "invalid sample id",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows(columns).
					AddRow("not-a-uuid", "svc.call", "duration", []byte(`{}`), 0.1, fixedNow))
			},
			expectedErr: postgresengine.ErrScanningDBRowFailed,
		},
		{
			name: "invalid labels json",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows(columns).
					AddRow(uuid.NewString(), "svc.call", "duration", []byte(`{`), 0.1, fixedNow))
			},
			expectedErr: postgresengine.ErrScanningDBRowFailed,
		},
		{
			name: "row iteration fails",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows(columns).
					AddRow(uuid.NewString(), "svc.call", "duration", []byte(`{}`), 0.1, fixedNow).
					RowError(0, errors.New("network")))
			},
			expectedErr: postgresengine.ErrQueryingSamplesFailed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store, mock := newMockedStore(t)
			tc.expect(mock)

			samples, err := store.Samples(context.Background(), "svc.call")

			assert.ErrorIs(t, err, tc.expectedErr)
			assert.Nil(t, samples)
		})
	}
}

func Test_SampleStore_FailedInsertIsLogged(t *testing.T) {
	contextualLogger := testdoubles.NewContextualLoggerSpy(true)
	store, mock := newMockedStore(t, postgresengine.WithContextualLogger(contextualLogger))

	mock.ExpectExec("INSERT").WillReturnError(errors.New("disk full"))

	assert.NotPanics(t, func() {
		store.IncrementCounter("jobs_total", nil)
	})

	record, found := contextualLogger.FindLog("error", "failed to append observation samples")
	require.True(t, found)
	metric, _ := record.ArgValue("metric")
	assert.Equal(t, "jobs_total", metric)
	kind, _ := record.ArgValue("kind")
	assert.Equal(t, "counter", kind)
	assert.True(t, contextualLogger.HasLog("debug", "executed sql for: append"))
}

func Test_SampleStore_LogsSQLWithPlainLogger(t *testing.T) {
	logSpy := testdoubles.NewLogHandlerSpy(false)
	store, mock := newMockedStore(t, postgresengine.WithLogger(slog.New(logSpy)))

	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(0, 1))

	store.RecordValue("queue_depth", 1, nil)

	record, found := logSpy.FindLog(slog.LevelDebug, "executed sql for: append")
	require.True(t, found)
	query, _ := testdoubles.AttrValue(record, "query")
	assert.Contains(t, query.String(), `INSERT INTO "observation_samples"`)
}

func Test_SampleStore_FromSQLX(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store, err := postgresengine.NewSampleStoreFromSQLX(sqlx.NewDb(db, "sqlmock"))
	require.NoError(t, err)

	mock.ExpectExec(insertPattern(`'svc.call'`)).WillReturnResult(sqlmock.NewResult(0, 1))

	sample, err := store.NewSample("svc.call", postgresengine.KindCounter, 1, nil)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), sample))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_SampleStore_StoresRegistryTimers(t *testing.T) {
	store, mock := newMockedStore(t)
	clock := testdoubles.NewManualClock(0)

	reg, err := registry.New(registry.WithClock(clock), registry.WithMetrics(store))
	require.NoError(t, err)

	mock.ExpectExec(insertPattern(`'duration'`, `'{"method":"GET"}'::jsonb`, `'svc.call'`, `0.25`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	o := observation.Start("svc.call", reg).LowCardinalityTag("method", "GET")
	clock.Add(250 * time.Millisecond)
	o.Stop()

	assert.NoError(t, mock.ExpectationsWereMet())
}
