package store

import "context"

// Stores groups the stores an operation works with. Inside UnitOfWork.Do
// they are all bound to the same transaction.
type Stores struct {
	Enrollments EnrollmentStore
	Catalog     CatalogStore
	Users       UserStore
}

// UnitOfWorkFn is the body of a unit of work.
type UnitOfWorkFn func(ctx context.Context, s Stores) error

// UnitOfWork runs a function against stores that share one transaction.
// Every write made by fn is committed if fn returns nil and discarded
// otherwise.
type UnitOfWork interface {
	Do(ctx context.Context, fn UnitOfWorkFn) error

	// Stores returns stores that are not bound to any transaction, for
	// read-only queries.
	Stores() Stores
}
