//go:build integration

package testdb

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/phrazzld/coursehub-api/internal/platform/postgres"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

// TestTimeout defines a default timeout for test database operations.
const TestTimeout = 5 * time.Second

// MigrationTableName is the goose version table used by the application.
const MigrationTableName = "schema_migrations"

var migrateOnce sync.Once

// GetTestDatabaseURL returns the database URL for tests.
// It checks DATABASE_URL and COURSEHUB_TEST_DB_URL in that order.
func GetTestDatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return os.Getenv("COURSEHUB_TEST_DB_URL")
}

// IsIntegrationTestEnvironment reports whether a test database is configured.
func IsIntegrationTestEnvironment() bool {
	return GetTestDatabaseURL() != ""
}

// GetTestDBWithT opens the test database, applies migrations once per test
// binary, and registers cleanup. It skips the test when no database is
// configured.
func GetTestDBWithT(t *testing.T) *sql.DB {
	t.Helper()

	if !IsIntegrationTestEnvironment() {
		t.Skip("DATABASE_URL not set - skipping integration test")
	}

	db, err := sql.Open("pgx", GetTestDatabaseURL())
	require.NoError(t, err, "Failed to open database connection")
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "Failed to ping test database")

	var migrateErr error
	migrateOnce.Do(func() {
		goose.SetBaseFS(postgres.Migrations)
		goose.SetTableName(MigrationTableName)
		if migrateErr = goose.SetDialect("postgres"); migrateErr != nil {
			return
		}
		migrateErr = goose.Up(db, postgres.MigrationsDir)
	})
	require.NoError(t, migrateErr, "Failed to run migrations")

	return db
}

// ResetTables removes all rows from the application tables.
func ResetTables(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`TRUNCATE course_enrollments, course_sessions, courses, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err, "Failed to truncate tables")
}
