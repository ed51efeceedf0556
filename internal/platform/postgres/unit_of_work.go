package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/coursehub-api/internal/store"
)

// UnitOfWork implements store.UnitOfWork with one database transaction per
// call to Do.
type UnitOfWork struct {
	db          *sql.DB
	enrollments *PostgresEnrollmentStore
	catalog     *PostgresCatalogStore
	users       *PostgresUserStore
	txOptions   *sql.TxOptions
}

// NewUnitOfWork creates a UnitOfWork over db. Transactions run at READ
// COMMITTED; the stores take explicit row locks where decisions depend on
// current values.
func NewUnitOfWork(db *sql.DB, logger *slog.Logger) *UnitOfWork {
	if db == nil {
		panic("db cannot be nil")
	}

	return &UnitOfWork{
		db:          db,
		enrollments: NewPostgresEnrollmentStore(db, logger),
		catalog:     NewPostgresCatalogStore(db, logger),
		users:       NewPostgresUserStore(db, logger),
		txOptions:   &sql.TxOptions{Isolation: sql.LevelReadCommitted},
	}
}

// Ensure UnitOfWork implements store.UnitOfWork interface
var _ store.UnitOfWork = (*UnitOfWork)(nil)

// Do implements store.UnitOfWork.Do.
func (u *UnitOfWork) Do(ctx context.Context, fn store.UnitOfWorkFn) error {
	err := store.RunInTransactionWithOptions(ctx, u.db, u.txOptions, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, store.Stores{
			Enrollments: u.enrollments.WithTx(tx),
			Catalog:     u.catalog.WithTx(tx),
			Users:       u.users.WithTx(tx),
		})
	})
	if err != nil && !store.IsConflictError(err) && IsConflictError(err) {
		return fmt.Errorf("%w: %w", store.ErrConcurrencyConflict, err)
	}
	return err
}

// Stores implements store.UnitOfWork.Stores.
func (u *UnitOfWork) Stores() store.Stores {
	return store.Stores{
		Enrollments: u.enrollments,
		Catalog:     u.catalog,
		Users:       u.users,
	}
}
