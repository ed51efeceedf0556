// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces defined in the internal/store package, on top of
// database/sql with the pgx stdlib driver.
//
// Row locks (SELECT ... FOR UPDATE) on enrollment and session rows keep
// concurrent approvals from overbooking a session; serialization failures
// and deadlocks surface as store.ErrConcurrencyConflict so that callers can
// retry the whole unit of work.
package postgres
