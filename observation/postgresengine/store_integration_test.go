package postgresengine_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-observations-go/observation/postgresengine"
	"github.com/AntonStoeckl/dynamic-observations-go/testutil/postgresengine/config"
)

func uniqueTableName() string {
	return "observation_samples_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func Test_Integration_SampleStore_RoundTrip(t *testing.T) {
	dsn := config.RequirePostgresDSN(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := config.NewPGXPool(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	sqlDB, err := config.NewSQLDB(ctx, dsn)
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	sqlxDB, err := config.NewSQLX(ctx, dsn)
	require.NoError(t, err)
	defer func() { _ = sqlxDB.Close() }()

	factories := map[string]func(options ...postgresengine.Option) (*postgresengine.SampleStore, error){
		"pgxpool": func(options ...postgresengine.Option) (*postgresengine.SampleStore, error) {
			return postgresengine.NewSampleStoreFromPGXPool(pool, options...)
		},
		"sql.DB": func(options ...postgresengine.Option) (*postgresengine.SampleStore, error) {
			return postgresengine.NewSampleStoreFromSQLDB(sqlDB, options...)
		},
		"sqlx.DB": func(options ...postgresengine.Option) (*postgresengine.SampleStore, error) {
			return postgresengine.NewSampleStoreFromSQLX(sqlxDB, options...)
		},
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			tableName := uniqueTableName()
			store, err := factory(postgresengine.WithTableName(tableName))
			require.NoError(t, err)

			require.NoError(t, store.CreateTable(ctx))
			require.NoError(t, store.CreateTable(ctx), "creating the table is idempotent")
			t.Cleanup(func() {
				_, _ = pool.Exec(context.Background(), `DROP TABLE IF EXISTS "`+tableName+`"`)
			})

			store.RecordDurationContext(ctx, "svc.call", 150*time.Millisecond, map[string]string{"method": "GET"})
			store.RecordDurationContext(ctx, "svc.call", 50*time.Millisecond, map[string]string{"method": "POST"})
			store.IncrementCounterContext(ctx, "jobs_total", nil)

			samples, err := store.Samples(ctx, "svc.call")
			require.NoError(t, err)
			require.Len(t, samples, 2)

			assert.Equal(t, postgresengine.KindDuration, samples[0].Kind)
			assert.Equal(t, 150*time.Millisecond, samples[0].Duration())
			assert.Equal(t, map[string]string{"method": "GET"}, samples[0].Labels)
			assert.Equal(t, uuid.Version(7), samples[0].ID.Version())
			assert.Equal(t, map[string]string{"method": "POST"}, samples[1].Labels)

			counters, err := store.Samples(ctx, "jobs_total")
			require.NoError(t, err)
			require.Len(t, counters, 1)
			assert.Equal(t, postgresengine.KindCounter, counters[0].Kind)
			assert.Empty(t, counters[0].Labels)
		})
	}
}
