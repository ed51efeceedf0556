package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/coursehub-api/internal/domain"
	"github.com/phrazzld/coursehub-api/internal/platform/logger"
	"github.com/phrazzld/coursehub-api/internal/store"
)

const enrollmentColumns = `
	id, user_id, session_id, status, apply_reason, applied_at,
	processed_at, process_reason, cancelled_at, cancel_reason,
	completed, completed_at, attendance_rate, completion_rate,
	version, created_at, updated_at`

// PostgresEnrollmentStore implements the store.EnrollmentStore interface
// using a PostgreSQL database as the storage backend.
type PostgresEnrollmentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresEnrollmentStore creates a new PostgreSQL implementation of the EnrollmentStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresEnrollmentStore(db store.DBTX, logger *slog.Logger) *PostgresEnrollmentStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresEnrollmentStore{
		db:     db,
		logger: logger.With(slog.String("component", "enrollment_store")),
	}
}

// Ensure PostgresEnrollmentStore implements store.EnrollmentStore interface
var _ store.EnrollmentStore = (*PostgresEnrollmentStore)(nil)

// WithTx returns a new store that runs every query on tx.
func (s *PostgresEnrollmentStore) WithTx(tx *sql.Tx) *PostgresEnrollmentStore {
	return &PostgresEnrollmentStore{db: tx, logger: s.logger}
}

// Create implements store.EnrollmentStore.Create.
// It inserts the enrollment and fills in the generated ID and version.
func (s *PostgresEnrollmentStore) Create(ctx context.Context, e *domain.Enrollment) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := e.Validate(); err != nil {
		log.Warn("enrollment validation failed during create",
			slog.String("error", err.Error()),
			slog.Int64("user_id", e.UserID),
			slog.Int64("session_id", e.SessionID))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO course_enrollments (
			user_id, session_id, status, apply_reason, applied_at,
			processed_at, process_reason, cancelled_at, cancel_reason,
			completed, completed_at, attendance_rate, completion_rate,
			version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1, $14, $15)
		RETURNING id, version
	`

	err := s.db.QueryRowContext(
		ctx,
		query,
		e.UserID,
		e.SessionID,
		string(e.Status),
		e.ApplyReason,
		e.AppliedAt,
		toNullTime(e.ProcessedAt),
		e.ProcessReason,
		toNullTime(e.CancelledAt),
		e.CancelReason,
		e.Completed,
		toNullTime(e.CompletedAt),
		toNullFloat(e.AttendanceRate),
		toNullFloat(e.CompletionRate),
		e.CreatedAt,
		e.UpdatedAt,
	).Scan(&e.ID, &e.Version)
	if err != nil {
		mapped := MapError(err)
		if store.IsDuplicateError(mapped) {
			log.Debug("live enrollment already exists",
				slog.Int64("user_id", e.UserID),
				slog.Int64("session_id", e.SessionID))
			return mapped
		}
		log.Error("failed to create enrollment",
			slog.String("error", err.Error()),
			slog.Int64("user_id", e.UserID),
			slog.Int64("session_id", e.SessionID))
		return mapped
	}

	log.Debug("enrollment created",
		slog.Int64("enrollment_id", e.ID),
		slog.Int64("user_id", e.UserID),
		slog.Int64("session_id", e.SessionID))
	return nil
}

// GetByID implements store.EnrollmentStore.GetByID.
func (s *PostgresEnrollmentStore) GetByID(ctx context.Context, id int64) (*domain.Enrollment, error) {
	return s.get(ctx, id, `SELECT`+enrollmentColumns+` FROM course_enrollments WHERE id = $1`)
}

// GetForUpdate implements store.EnrollmentStore.GetForUpdate.
// The row stays locked until the surrounding transaction ends.
func (s *PostgresEnrollmentStore) GetForUpdate(ctx context.Context, id int64) (*domain.Enrollment, error) {
	return s.get(ctx, id, `SELECT`+enrollmentColumns+` FROM course_enrollments WHERE id = $1 FOR UPDATE`)
}

func (s *PostgresEnrollmentStore) get(ctx context.Context, id int64, query string) (*domain.Enrollment, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	e, err := scanEnrollment(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("enrollment not found", slog.Int64("enrollment_id", id))
			return nil, store.ErrEnrollmentNotFound
		}
		log.Error("failed to get enrollment",
			slog.String("error", err.Error()),
			slog.Int64("enrollment_id", id))
		return nil, MapError(err)
	}

	return e, nil
}

// Update implements store.EnrollmentStore.Update.
// The write is conditional on the version read earlier; a mismatch means
// another transaction committed first.
func (s *PostgresEnrollmentStore) Update(ctx context.Context, e *domain.Enrollment) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE course_enrollments
		SET status = $1,
			processed_at = $2,
			process_reason = $3,
			cancelled_at = $4,
			cancel_reason = $5,
			completed = $6,
			completed_at = $7,
			attendance_rate = $8,
			completion_rate = $9,
			updated_at = $10,
			version = version + 1
		WHERE id = $11 AND version = $12
		RETURNING version
	`

	var newVersion int
	err := s.db.QueryRowContext(
		ctx,
		query,
		string(e.Status),
		toNullTime(e.ProcessedAt),
		e.ProcessReason,
		toNullTime(e.CancelledAt),
		e.CancelReason,
		e.Completed,
		toNullTime(e.CompletedAt),
		toNullFloat(e.AttendanceRate),
		toNullFloat(e.CompletionRate),
		e.UpdatedAt,
		e.ID,
		e.Version,
	).Scan(&newVersion)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Error("failed to update enrollment",
				slog.String("error", err.Error()),
				slog.Int64("enrollment_id", e.ID))
			return MapError(err)
		}

		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM course_enrollments WHERE id = $1)`, e.ID,
		).Scan(&exists); err != nil {
			return MapError(err)
		}
		if !exists {
			return store.ErrEnrollmentNotFound
		}

		log.Warn("stale enrollment version on update",
			slog.Int64("enrollment_id", e.ID),
			slog.Int("version", e.Version))
		return store.NewStoreError("enrollment", "update", "stale version", store.ErrConcurrencyConflict)
	}

	e.Version = newVersion
	log.Debug("enrollment updated",
		slog.Int64("enrollment_id", e.ID),
		slog.String("status", string(e.Status)))
	return nil
}

// FindLive implements store.EnrollmentStore.FindLive.
func (s *PostgresEnrollmentStore) FindLive(ctx context.Context, userID, sessionID int64) (*domain.Enrollment, error) {
	query := `SELECT` + enrollmentColumns + `
		FROM course_enrollments
		WHERE user_id = $1 AND session_id = $2 AND status IN ('PENDING', 'APPROVED')
		LIMIT 1`

	e, err := scanEnrollment(s.db.QueryRowContext(ctx, query, userID, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrEnrollmentNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to find live enrollment",
			slog.String("error", err.Error()),
			slog.Int64("user_id", userID),
			slog.Int64("session_id", sessionID))
		return nil, MapError(err)
	}
	return e, nil
}

// ListByUser implements store.EnrollmentStore.ListByUser.
func (s *PostgresEnrollmentStore) ListByUser(ctx context.Context, userID int64) ([]*domain.Enrollment, error) {
	query := `SELECT` + enrollmentColumns + `
		FROM course_enrollments
		WHERE user_id = $1
		ORDER BY applied_at DESC, id DESC`

	return s.list(ctx, query, userID)
}

// ListBySession implements store.EnrollmentStore.ListBySession.
func (s *PostgresEnrollmentStore) ListBySession(
	ctx context.Context,
	sessionID int64,
	status *domain.EnrollmentStatus,
) ([]*domain.Enrollment, error) {
	var statusArg sql.NullString
	if status != nil {
		statusArg = sql.NullString{String: string(*status), Valid: true}
	}

	query := `SELECT` + enrollmentColumns + `
		FROM course_enrollments
		WHERE session_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY applied_at ASC, id ASC`

	return s.list(ctx, query, sessionID, statusArg)
}

func (s *PostgresEnrollmentStore) list(ctx context.Context, query string, args ...any) ([]*domain.Enrollment, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list enrollments", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Warn("failed to close rows", slog.String("error", cerr.Error()))
		}
	}()

	enrollments := make([]*domain.Enrollment, 0)
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			log.Error("failed to scan enrollment row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		enrollments = append(enrollments, e)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating enrollment rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return enrollments, nil
}

func scanEnrollment(row rowScanner) (*domain.Enrollment, error) {
	var (
		e              domain.Enrollment
		status         string
		processedAt    sql.NullTime
		cancelledAt    sql.NullTime
		completedAt    sql.NullTime
		attendanceRate sql.NullFloat64
		completionRate sql.NullFloat64
	)

	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.SessionID,
		&status,
		&e.ApplyReason,
		&e.AppliedAt,
		&processedAt,
		&e.ProcessReason,
		&cancelledAt,
		&e.CancelReason,
		&e.Completed,
		&completedAt,
		&attendanceRate,
		&completionRate,
		&e.Version,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Status = domain.EnrollmentStatus(status)
	e.AppliedAt = e.AppliedAt.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	e.ProcessedAt = nullTimePtr(processedAt)
	e.CancelledAt = nullTimePtr(cancelledAt)
	e.CompletedAt = nullTimePtr(completedAt)
	e.AttendanceRate = nullFloatPtr(attendanceRate)
	e.CompletionRate = nullFloatPtr(completionRate)
	return &e, nil
}
