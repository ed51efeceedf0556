// Package memory provides an in-process implementation of the store
// interfaces. Units of work are serialized by a single lock and operate on a
// copy of the data that replaces the committed state only when the unit of
// work succeeds, which gives the same all-or-nothing behaviour as a database
// transaction. It backs the memory storage driver and the service tests.
package memory
