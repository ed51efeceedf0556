package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/phrazzld/coursehub-api/internal/domain"
	"github.com/phrazzld/coursehub-api/internal/store"
)

// view implements the store interfaces either on a unit-of-work copy (tx)
// or directly on the committed state of db.
type view struct {
	db *Store
	tx *state
}

var (
	_ store.EnrollmentStore = (*view)(nil)
	_ store.CatalogStore    = (*view)(nil)
	_ store.UserStore       = (*view)(nil)
)

func (v *view) stores() store.Stores {
	return store.Stores{Enrollments: v, Catalog: v, Users: v}
}

func (v *view) read() (*state, func()) {
	if v.tx != nil {
		return v.tx, func() {}
	}
	v.db.mu.RLock()
	return v.db.committed, v.db.mu.RUnlock
}

func (v *view) write() (*state, func()) {
	if v.tx != nil {
		return v.tx, func() {}
	}
	v.db.mu.Lock()
	return v.db.committed, v.db.mu.Unlock
}

// Create implements store.EnrollmentStore.Create.
func (v *view) Create(_ context.Context, e *domain.Enrollment) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	st, done := v.write()
	defer done()

	if _, ok := st.users[e.UserID]; !ok {
		return fmt.Errorf("%w: user %d does not exist", store.ErrInvalidEntity, e.UserID)
	}
	if _, ok := st.sessions[e.SessionID]; !ok {
		return fmt.Errorf("%w: course session %d does not exist", store.ErrInvalidEntity, e.SessionID)
	}
	if e.Status.IsLive() {
		for _, existing := range st.enrollments {
			if existing.UserID == e.UserID && existing.SessionID == e.SessionID && existing.Status.IsLive() {
				return store.ErrLiveEnrollmentExists
			}
		}
	}

	st.nextID++
	e.ID = st.nextID
	e.Version = 1
	st.enrollments[e.ID] = *e
	return nil
}

// GetByID implements store.EnrollmentStore.GetByID.
func (v *view) GetByID(_ context.Context, id int64) (*domain.Enrollment, error) {
	st, done := v.read()
	defer done()

	e, ok := st.enrollments[id]
	if !ok {
		return nil, store.ErrEnrollmentNotFound
	}
	return &e, nil
}

// GetForUpdate implements store.EnrollmentStore.GetForUpdate. Units of work
// are already serialized, so no extra lock is taken.
func (v *view) GetForUpdate(ctx context.Context, id int64) (*domain.Enrollment, error) {
	return v.GetByID(ctx, id)
}

// Update implements store.EnrollmentStore.Update.
func (v *view) Update(_ context.Context, e *domain.Enrollment) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	st, done := v.write()
	defer done()

	current, ok := st.enrollments[e.ID]
	if !ok {
		return store.ErrEnrollmentNotFound
	}
	if current.Version != e.Version {
		return store.NewStoreError("enrollment", "update", "stale version", store.ErrConcurrencyConflict)
	}
	if current.UserID != e.UserID || current.SessionID != e.SessionID {
		return fmt.Errorf("%w: enrollment user and session are immutable", store.ErrInvalidEntity)
	}

	e.Version++
	st.enrollments[e.ID] = *e
	return nil
}

// FindLive implements store.EnrollmentStore.FindLive.
func (v *view) FindLive(_ context.Context, userID, sessionID int64) (*domain.Enrollment, error) {
	st, done := v.read()
	defer done()

	for _, e := range st.enrollments {
		if e.UserID == userID && e.SessionID == sessionID && e.Status.IsLive() {
			return &e, nil
		}
	}
	return nil, store.ErrEnrollmentNotFound
}

// ListByUser implements store.EnrollmentStore.ListByUser.
func (v *view) ListByUser(_ context.Context, userID int64) ([]*domain.Enrollment, error) {
	st, done := v.read()
	defer done()

	out := make([]*domain.Enrollment, 0)
	for _, e := range st.enrollments {
		if e.UserID == userID {
			e := e
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AppliedAt.Equal(out[j].AppliedAt) {
			return out[i].AppliedAt.After(out[j].AppliedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// ListBySession implements store.EnrollmentStore.ListBySession.
func (v *view) ListBySession(_ context.Context, sessionID int64, status *domain.EnrollmentStatus) ([]*domain.Enrollment, error) {
	st, done := v.read()
	defer done()

	out := make([]*domain.Enrollment, 0)
	for _, e := range st.enrollments {
		if e.SessionID != sessionID || (status != nil && e.Status != *status) {
			continue
		}
		e := e
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AppliedAt.Equal(out[j].AppliedAt) {
			return out[i].AppliedAt.Before(out[j].AppliedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetSession implements store.CatalogStore.GetSession.
func (v *view) GetSession(_ context.Context, sessionID int64) (*domain.SessionSnapshot, error) {
	st, done := v.read()
	defer done()

	sess, ok := st.sessions[sessionID]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	course, ok := st.courses[sess.CourseID]
	if !ok {
		return nil, store.ErrCourseNotFound
	}

	snap := &domain.SessionSnapshot{
		SessionID:             sess.ID,
		CourseID:              course.ID,
		SessionName:           sess.Name,
		CourseName:            course.Name,
		Status:                sess.Status,
		StartDate:             sess.StartDate,
		EndDate:               sess.EndDate,
		RecruitmentStartAt:    sess.RecruitmentStartAt,
		RecruitmentEndAt:      sess.RecruitmentEndAt,
		CurrentEnrollment:     sess.CurrentEnrollment,
		CourseEnrollmentCount: course.EnrollmentCount,
	}
	if course.MaxEnrollment != nil {
		capacity := *course.MaxEnrollment
		snap.MaxEnrollment = &capacity
	}
	return snap, nil
}

// GetSessionForUpdate implements store.CatalogStore.GetSessionForUpdate.
func (v *view) GetSessionForUpdate(ctx context.Context, sessionID int64) (*domain.SessionSnapshot, error) {
	return v.GetSession(ctx, sessionID)
}

// AdjustEnrollmentCount implements store.CatalogStore.AdjustEnrollmentCount.
func (v *view) AdjustEnrollmentCount(_ context.Context, sessionID int64, delta int) error {
	st, done := v.write()
	defer done()

	sess, ok := st.sessions[sessionID]
	if !ok {
		return store.ErrSessionNotFound
	}
	sess.CurrentEnrollment = max(sess.CurrentEnrollment+delta, 0)
	st.sessions[sessionID] = sess
	return nil
}

// AdjustCourseEnrollmentCount implements store.CatalogStore.AdjustCourseEnrollmentCount.
func (v *view) AdjustCourseEnrollmentCount(_ context.Context, courseID int64, delta int) error {
	st, done := v.write()
	defer done()

	course, ok := st.courses[courseID]
	if !ok {
		return store.ErrCourseNotFound
	}
	course.EnrollmentCount = max(course.EnrollmentCount+delta, 0)
	st.courses[courseID] = course
	return nil
}

// GetUser implements store.UserStore.GetUser.
func (v *view) GetUser(_ context.Context, id int64) (*domain.User, error) {
	st, done := v.read()
	defer done()

	u, ok := st.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &u, nil
}
