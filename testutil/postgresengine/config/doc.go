// Package config provides PostgreSQL connections for the sample store integration tests.
//
// The DSN comes from OBSERVATION_TEST_POSTGRES_DSN. When it is unset, the integration tests skip.
// The factories open a pgxpool.Pool, a sql.DB (lib/pq) or a sqlx.DB with the same pool tuning.
package config
