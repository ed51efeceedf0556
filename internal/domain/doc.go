// Package domain contains the core business entities, value objects, and
// domain logic of the application: course enrollments and their lifecycle,
// the session snapshots the ledger reasons about, and the users who enroll.
// It is independent of any specific infrastructure or delivery mechanism.
package domain
