// Package enrollment implements the course enrollment ledger and its read
// projections.
//
// Every mutating operation runs as one unit of work: the enrollment record
// and the seat counters of its session and course are committed together or
// not at all. Capacity is checked optimistically when a user enrolls and
// again, against a locked session row, when a seat is actually taken on
// approval. Units of work that lose a race with a concurrent writer are
// retried a bounded number of times before the conflict reaches the caller.
//
// Committed transitions are published as events.EnrollmentEvent values.
// A failure to publish is logged and never undoes the transition.
package enrollment
