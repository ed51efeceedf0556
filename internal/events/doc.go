// Package events carries committed enrollment lifecycle changes from the
// ledger to the components that react to them (the task queue publisher,
// metrics, logging) without the ledger knowing about any of them.
//
// The primary components are:
// - EnrollmentEvent: a committed transition of one enrollment
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
package events
