package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/coursehub-api/internal/domain"
	"github.com/phrazzld/coursehub-api/internal/store"
)

// Course is the catalog record of a course.
type Course struct {
	ID              int64  `yaml:"id"`
	Name            string `yaml:"name"`
	MaxEnrollment   *int   `yaml:"max_enrollment"`
	EnrollmentCount int    `yaml:"enrollment_count"`
}

// Session is the catalog record of a course session.
type Session struct {
	ID                 int64                `yaml:"id"`
	CourseID           int64                `yaml:"course_id"`
	Name               string               `yaml:"name"`
	Status             domain.SessionStatus `yaml:"status"`
	StartDate          time.Time            `yaml:"start_date"`
	EndDate            time.Time            `yaml:"end_date"`
	RecruitmentStartAt *time.Time           `yaml:"recruitment_start_at"`
	RecruitmentEndAt   *time.Time           `yaml:"recruitment_end_at"`
	CurrentEnrollment  int                  `yaml:"current_enrollment"`
}

type state struct {
	users       map[int64]domain.User
	courses     map[int64]Course
	sessions    map[int64]Session
	enrollments map[int64]domain.Enrollment
	nextID      int64
}

func newState() *state {
	return &state{
		users:       make(map[int64]domain.User),
		courses:     make(map[int64]Course),
		sessions:    make(map[int64]Session),
		enrollments: make(map[int64]domain.Enrollment),
	}
}

func (s *state) clone() *state {
	c := &state{
		users:       make(map[int64]domain.User, len(s.users)),
		courses:     make(map[int64]Course, len(s.courses)),
		sessions:    make(map[int64]Session, len(s.sessions)),
		enrollments: make(map[int64]domain.Enrollment, len(s.enrollments)),
		nextID:      s.nextID,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.courses {
		c.courses[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.enrollments {
		c.enrollments[k] = v
	}
	return c
}

// Store holds the committed state and hands out transactional views of it.
type Store struct {
	mu        sync.RWMutex
	committed *state
	logger    *slog.Logger
}

// New creates an empty Store. If logger is nil, a default logger will be used.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		committed: newState(),
		logger:    logger.With(slog.String("component", "memory_store")),
	}
}

// Ensure Store implements store.UnitOfWork interface
var _ store.UnitOfWork = (*Store)(nil)

// Do implements store.UnitOfWork.Do. Like BeginTx, it refuses a context
// that is already done.
func (s *Store) Do(ctx context.Context, fn store.UnitOfWorkFn) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.committed.clone()
	v := &view{tx: work}
	if err := fn(ctx, v.stores()); err != nil {
		s.logger.Debug("unit of work discarded", slog.String("error", err.Error()))
		return err
	}
	s.committed = work
	return nil
}

// Stores implements store.UnitOfWork.Stores. Each call on the returned
// stores is atomic on its own. They must not be used inside Do.
func (s *Store) Stores() store.Stores {
	return (&view{db: s}).stores()
}

// PutUser adds or replaces a user.
func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed.users[u.ID] = u
}

// PutCourse adds or replaces a course.
func (s *Store) PutCourse(c Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed.courses[c.ID] = c
}

// PutSession adds or replaces a session.
func (s *Store) PutSession(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed.sessions[sess.ID] = sess
}

// SessionCounter returns the committed current enrollment of a session.
func (s *Store) SessionCounter(sessionID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed.sessions[sessionID].CurrentEnrollment
}

// CourseCounter returns the committed enrollment aggregate of a course.
func (s *Store) CourseCounter(courseID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed.courses[courseID].EnrollmentCount
}

// Enrollments returns copies of every committed enrollment.
func (s *Store) Enrollments() []domain.Enrollment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Enrollment, 0, len(s.committed.enrollments))
	for _, e := range s.committed.enrollments {
		out = append(out, e)
	}
	return out
}
