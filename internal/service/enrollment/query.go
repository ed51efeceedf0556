package enrollment

import (
	"context"
	"log/slog"

	"github.com/phrazzld/coursehub-api/internal/domain"
	"github.com/phrazzld/coursehub-api/internal/platform/logger"
	"github.com/phrazzld/coursehub-api/internal/store"
)

// QueryService answers read-only questions about a user's enrollments.
// Results are recomputed from the stored records on every call.
type QueryService interface {
	// InProgress returns approved enrollments that are not completed yet.
	InProgress(ctx context.Context, userID int64) ([]*EnrollmentView, error)

	// Completed returns approved enrollments that have been completed.
	Completed(ctx context.Context, userID int64) ([]*EnrollmentView, error)

	// ListByUser returns every enrollment of the user, newest first.
	ListByUser(ctx context.Context, userID int64) ([]*EnrollmentView, error)
}

type queryService struct {
	stores store.Stores
	logger *slog.Logger
}

var _ QueryService = (*queryService)(nil)

// NewQueryService creates a QueryService over stores that are not bound to
// a transaction.
func NewQueryService(stores store.Stores, log *slog.Logger) QueryService {
	if log == nil {
		log = slog.Default()
	}
	return &queryService{
		stores: stores,
		logger: log.With(slog.String("component", "enrollment_query")),
	}
}

func (q *queryService) InProgress(ctx context.Context, userID int64) ([]*EnrollmentView, error) {
	return q.list(ctx, "in_progress", userID, (*domain.Enrollment).IsInProgress)
}

func (q *queryService) Completed(ctx context.Context, userID int64) ([]*EnrollmentView, error) {
	return q.list(ctx, "completed", userID, (*domain.Enrollment).IsCompleted)
}

func (q *queryService) ListByUser(ctx context.Context, userID int64) ([]*EnrollmentView, error) {
	return q.list(ctx, "list_by_user", userID, nil)
}

func (q *queryService) list(ctx context.Context, op string, userID int64, keep func(*domain.Enrollment) bool) ([]*EnrollmentView, error) {
	log := logger.FromContextOrDefault(ctx, q.logger)

	user, err := q.stores.Users.GetUser(ctx, userID)
	if err != nil {
		return nil, wrap(op, err)
	}

	all, err := q.stores.Enrollments.ListByUser(ctx, userID)
	if err != nil {
		log.Error("failed to list enrollments",
			slog.String("error", err.Error()),
			slog.Int64("user_id", userID))
		return nil, wrap(op, err)
	}

	selected := all
	if keep != nil {
		selected = make([]*domain.Enrollment, 0, len(all))
		for _, e := range all {
			if keep(e) {
				selected = append(selected, e)
			}
		}
	}

	views, err := newProjector(q.stores).seed(user, nil).views(ctx, selected)
	if err != nil {
		return nil, wrap(op, err)
	}

	log.Debug("listed enrollments",
		slog.String("query", op),
		slog.Int64("user_id", userID),
		slog.Int("count", len(views)))
	return views, nil
}
