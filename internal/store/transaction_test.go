package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestRunInTransaction_Success(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		return nil
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransaction_FunctionError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	expectedErr := errors.New("function failed")
	err := RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		return expectedErr
	})
	assert.Equal(t, expectedErr, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransaction_BeginError(t *testing.T) {
	db, mock := newMockDB(t)

	expectedErr := errors.New("begin transaction failed")
	mock.ExpectBegin().WillReturnError(expectedErr)

	err := RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		t.Fatal("function must not run when begin fails")
		return nil
	})
	assert.ErrorContains(t, err, "failed to begin transaction")
	assert.ErrorIs(t, err, expectedErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransaction_CommitError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	expectedErr := errors.New("commit failed")
	mock.ExpectCommit().WillReturnError(expectedErr)

	err := RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		return nil
	})
	assert.ErrorIs(t, err, expectedErr)
	assert.ErrorIs(t, err, ErrTransactionFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransaction_RollbackError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	functionErr := errors.New("function failed")
	mock.ExpectRollback().WillReturnError(errors.New("rollback failed"))

	err := RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		return functionErr
	})
	assert.ErrorContains(t, err, "rollback failed")
	assert.ErrorIs(t, err, functionErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransaction_Panic(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
			panic("test panic")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransactionWithOptions_PassesThroughError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	err := RunInTransactionWithOptions(context.Background(), db, opts, func(ctx context.Context, tx *sql.Tx) error {
		return ErrConcurrencyConflict
	})
	assert.True(t, IsConflictError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
