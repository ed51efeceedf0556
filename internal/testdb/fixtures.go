//go:build integration

package testdb

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// InsertUser creates a user and returns its ID.
func InsertUser(t *testing.T, db *sql.DB, displayName string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(`INSERT INTO users (display_name) VALUES ($1) RETURNING id`, displayName).Scan(&id)
	require.NoError(t, err, "Failed to insert user")
	return id
}

// InsertCourse creates a course with an optional seat cap and returns its ID.
func InsertCourse(t *testing.T, db *sql.DB, name string, maxEnrollment *int) int64 {
	t.Helper()
	var capacity sql.NullInt64
	if maxEnrollment != nil {
		capacity = sql.NullInt64{Int64: int64(*maxEnrollment), Valid: true}
	}
	var id int64
	err := db.QueryRow(
		`INSERT INTO courses (name, max_enrollment) VALUES ($1, $2) RETURNING id`, name, capacity,
	).Scan(&id)
	require.NoError(t, err, "Failed to insert course")
	return id
}

// InsertSession creates a recruiting session of courseID with an open
// recruitment window and returns its ID.
func InsertSession(t *testing.T, db *sql.DB, courseID int64, name string) int64 {
	t.Helper()
	start := time.Now().UTC().AddDate(0, 1, 0)
	var id int64
	err := db.QueryRow(`
		INSERT INTO course_sessions (course_id, name, status, start_date, end_date)
		VALUES ($1, $2, 'RECRUITING', $3, $4)
		RETURNING id`,
		courseID, name, start, start.AddDate(0, 2, 0),
	).Scan(&id)
	require.NoError(t, err, "Failed to insert session")
	return id
}

// SessionCounter returns the current enrollment counter of a session.
func SessionCounter(t *testing.T, db *sql.DB, sessionID int64) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(
		`SELECT current_enrollment FROM course_sessions WHERE id = $1`, sessionID,
	).Scan(&n))
	return n
}
