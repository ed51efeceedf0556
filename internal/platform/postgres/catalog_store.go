package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/phrazzld/coursehub-api/internal/domain"
	"github.com/phrazzld/coursehub-api/internal/platform/logger"
	"github.com/phrazzld/coursehub-api/internal/store"
)

const sessionSnapshotQuery = `
	SELECT s.id, s.course_id, s.name, c.name, s.status,
		s.start_date, s.end_date, s.recruitment_start_at, s.recruitment_end_at,
		c.max_enrollment, s.current_enrollment, c.enrollment_count
	FROM course_sessions s
	JOIN courses c ON c.id = s.course_id
	WHERE s.id = $1`

// PostgresCatalogStore implements store.CatalogStore over the courses and
// course_sessions tables.
type PostgresCatalogStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCatalogStore creates a new PostgresCatalogStore.
// If logger is nil, a default logger will be used.
func NewPostgresCatalogStore(db store.DBTX, logger *slog.Logger) *PostgresCatalogStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresCatalogStore{
		db:     db,
		logger: logger.With(slog.String("component", "catalog_store")),
	}
}

// Ensure PostgresCatalogStore implements store.CatalogStore interface
var _ store.CatalogStore = (*PostgresCatalogStore)(nil)

// WithTx returns a new store that runs every query on tx.
func (s *PostgresCatalogStore) WithTx(tx *sql.Tx) *PostgresCatalogStore {
	return &PostgresCatalogStore{db: tx, logger: s.logger}
}

// GetSession implements store.CatalogStore.GetSession.
func (s *PostgresCatalogStore) GetSession(ctx context.Context, sessionID int64) (*domain.SessionSnapshot, error) {
	return s.getSession(ctx, sessionID, sessionSnapshotQuery)
}

// GetSessionForUpdate implements store.CatalogStore.GetSessionForUpdate.
// Only the session row is locked; the course row is locked implicitly when
// its aggregate is adjusted.
func (s *PostgresCatalogStore) GetSessionForUpdate(ctx context.Context, sessionID int64) (*domain.SessionSnapshot, error) {
	return s.getSession(ctx, sessionID, sessionSnapshotQuery+` FOR UPDATE OF s`)
}

func (s *PostgresCatalogStore) getSession(ctx context.Context, sessionID int64, query string) (*domain.SessionSnapshot, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		snap          domain.SessionSnapshot
		status        string
		recruitStart  sql.NullTime
		recruitEnd    sql.NullTime
		maxEnrollment sql.NullInt64
	)

	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&snap.SessionID,
		&snap.CourseID,
		&snap.SessionName,
		&snap.CourseName,
		&status,
		&snap.StartDate,
		&snap.EndDate,
		&recruitStart,
		&recruitEnd,
		&maxEnrollment,
		&snap.CurrentEnrollment,
		&snap.CourseEnrollmentCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("course session not found", slog.Int64("session_id", sessionID))
			return nil, store.ErrSessionNotFound
		}
		log.Error("failed to get course session",
			slog.String("error", err.Error()),
			slog.Int64("session_id", sessionID))
		return nil, MapError(err)
	}

	snap.Status = domain.SessionStatus(status)
	snap.StartDate = snap.StartDate.UTC()
	snap.EndDate = snap.EndDate.UTC()
	snap.RecruitmentStartAt = nullTimePtr(recruitStart)
	snap.RecruitmentEndAt = nullTimePtr(recruitEnd)
	snap.MaxEnrollment = nullIntPtr(maxEnrollment)
	return &snap, nil
}

// AdjustEnrollmentCount implements store.CatalogStore.AdjustEnrollmentCount.
func (s *PostgresCatalogStore) AdjustEnrollmentCount(ctx context.Context, sessionID int64, delta int) error {
	query := `
		UPDATE course_sessions
		SET current_enrollment = GREATEST(current_enrollment + $2, 0), updated_at = NOW()
		WHERE id = $1
	`
	return s.adjust(ctx, query, sessionID, delta, store.ErrSessionNotFound)
}

// AdjustCourseEnrollmentCount implements store.CatalogStore.AdjustCourseEnrollmentCount.
func (s *PostgresCatalogStore) AdjustCourseEnrollmentCount(ctx context.Context, courseID int64, delta int) error {
	query := `
		UPDATE courses
		SET enrollment_count = GREATEST(enrollment_count + $2, 0), updated_at = NOW()
		WHERE id = $1
	`
	return s.adjust(ctx, query, courseID, delta, store.ErrCourseNotFound)
}

func (s *PostgresCatalogStore) adjust(ctx context.Context, query string, id int64, delta int, notFound error) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, query, id, delta)
	if err != nil {
		log.Error("failed to adjust enrollment counter",
			slog.String("error", err.Error()),
			slog.Int64("id", id),
			slog.Int("delta", delta))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, notFound); err != nil {
		return err
	}

	log.Debug("enrollment counter adjusted",
		slog.Int64("id", id),
		slog.Int("delta", delta))
	return nil
}
