// Package adapters hides the differences between pgxpool.Pool, sql.DB and sqlx.DB behind DBAdapter,
// so the sample store builds its SQL once and runs it on any of them.
package adapters
