// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic, allowing the enrollment rules to remain
// independent of specific database technologies or persistence details.
//
// The catalog and user stores are the ledger's view of collaborators it
// does not own: it reads session snapshots and user profiles through them
// and may only adjust seat counters.
package store
