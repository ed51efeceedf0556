//go:build integration

// Package testdb provides utilities for database integration tests.
//
// Tests built with the integration tag connect to the database named by
// DATABASE_URL (or COURSEHUB_TEST_DB_URL), apply the embedded migrations
// once, and truncate the tables between tests. Tests skip themselves when no
// database is configured.
//
//	func TestSomething(t *testing.T) {
//	    db := testdb.GetTestDBWithT(t)
//	    testdb.ResetTables(t, db)
//	    courseID := testdb.InsertCourse(t, db, "Go in Practice", intPtr(2))
//	    ...
//	}
package testdb
