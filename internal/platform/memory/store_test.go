package memory_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/coursehub-api/internal/domain"
	"github.com/phrazzld/coursehub-api/internal/platform/memory"
	"github.com/phrazzld/coursehub-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newSeededStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	capacity := 2
	require.NoError(t, s.Apply(memory.Seed{
		Users:    []domain.User{{ID: 1, DisplayName: "Kim"}, {ID: 2, DisplayName: "Lee"}},
		Courses:  []memory.Course{{ID: 10, Name: "Go in Practice", MaxEnrollment: &capacity}},
		Sessions: []memory.Session{{ID: 100, CourseID: 10, Name: "Spring", StartDate: now, EndDate: now.AddDate(0, 2, 0)}},
	}))
	return s
}

func TestStore_DoCommitsOrDiscards(t *testing.T) {
	s := newSeededStore(t)
	ctx := context.Background()

	err := s.Do(ctx, func(ctx context.Context, st store.Stores) error {
		e, _ := domain.NewEnrollment(1, 100, "", now)
		require.NoError(t, st.Enrollments.Create(ctx, e))
		require.NoError(t, st.Catalog.AdjustEnrollmentCount(ctx, 100, 1))
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")
	assert.Empty(t, s.Enrollments(), "aborted unit of work must not leave records")
	assert.Equal(t, 0, s.SessionCounter(100), "aborted unit of work must not move counters")

	err = s.Do(ctx, func(ctx context.Context, st store.Stores) error {
		e, _ := domain.NewEnrollment(1, 100, "", now)
		if err := st.Enrollments.Create(ctx, e); err != nil {
			return err
		}
		return st.Catalog.AdjustEnrollmentCount(ctx, 100, 1)
	})
	require.NoError(t, err)
	assert.Len(t, s.Enrollments(), 1)
	assert.Equal(t, 1, s.SessionCounter(100))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	ran := false
	err = s.Do(cancelled, func(context.Context, store.Stores) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran, "a done context must not start a unit of work")
}

func TestStore_LiveEnrollmentUniqueness(t *testing.T) {
	s := newSeededStore(t)
	ctx := context.Background()
	enrollments := s.Stores().Enrollments

	first, _ := domain.NewEnrollment(1, 100, "", now)
	require.NoError(t, enrollments.Create(ctx, first))

	dup, _ := domain.NewEnrollment(1, 100, "", now)
	assert.ErrorIs(t, enrollments.Create(ctx, dup), store.ErrLiveEnrollmentExists)

	_, err := first.Cancel(1, "", now)
	require.NoError(t, err)
	require.NoError(t, enrollments.Update(ctx, first))

	again, _ := domain.NewEnrollment(1, 100, "", now)
	assert.NoError(t, enrollments.Create(ctx, again), "a cancelled enrollment no longer blocks the pair")

	live, err := enrollments.FindLive(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, again.ID, live.ID)
}

func TestStore_UpdateVersionCheck(t *testing.T) {
	s := newSeededStore(t)
	ctx := context.Background()
	enrollments := s.Stores().Enrollments

	e, _ := domain.NewEnrollment(1, 100, "", now)
	require.NoError(t, enrollments.Create(ctx, e))

	a, _ := enrollments.GetByID(ctx, e.ID)
	b, _ := enrollments.GetByID(ctx, e.ID)

	require.NoError(t, a.Approve("", now))
	require.NoError(t, enrollments.Update(ctx, a))
	assert.Equal(t, 2, a.Version)

	require.NoError(t, b.Reject("", now))
	assert.True(t, store.IsConflictError(enrollments.Update(ctx, b)))

	stored, _ := enrollments.GetByID(ctx, e.ID)
	assert.Equal(t, domain.StatusApproved, stored.Status)

	missing := *a
	missing.ID = 999
	assert.ErrorIs(t, enrollments.Update(ctx, &missing), store.ErrEnrollmentNotFound)
}

func TestStore_CreateRequiresKnownUserAndSession(t *testing.T) {
	s := newSeededStore(t)
	ctx := context.Background()

	e, _ := domain.NewEnrollment(42, 100, "", now)
	assert.ErrorIs(t, s.Stores().Enrollments.Create(ctx, e), store.ErrInvalidEntity)

	e, _ = domain.NewEnrollment(1, 404, "", now)
	assert.ErrorIs(t, s.Stores().Enrollments.Create(ctx, e), store.ErrInvalidEntity)
}

func TestStore_Catalog(t *testing.T) {
	s := newSeededStore(t)
	ctx := context.Background()
	catalog := s.Stores().Catalog

	snap, err := catalog.GetSession(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "Go in Practice", snap.CourseName)
	assert.Equal(t, domain.SessionRecruiting, snap.Status, "seeded sessions default to recruiting")
	require.NotNil(t, snap.MaxEnrollment)
	assert.Equal(t, 2, *snap.MaxEnrollment)

	require.NoError(t, catalog.AdjustEnrollmentCount(ctx, 100, -1))
	assert.Equal(t, 0, s.SessionCounter(100), "counter floors at zero")

	require.NoError(t, catalog.AdjustCourseEnrollmentCount(ctx, 10, 3))
	assert.Equal(t, 3, s.CourseCounter(10))

	_, err = catalog.GetSession(ctx, 404)
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
	assert.ErrorIs(t, catalog.AdjustEnrollmentCount(ctx, 404, 1), store.ErrSessionNotFound)
	assert.ErrorIs(t, catalog.AdjustCourseEnrollmentCount(ctx, 404, 1), store.ErrCourseNotFound)
}

func TestStore_ListOrdering(t *testing.T) {
	s := newSeededStore(t)
	ctx := context.Background()
	enrollments := s.Stores().Enrollments

	older, _ := domain.NewEnrollment(1, 100, "", now)
	newer, _ := domain.NewEnrollment(2, 100, "", now.Add(time.Hour))
	require.NoError(t, enrollments.Create(ctx, newer))
	require.NoError(t, enrollments.Create(ctx, older))

	bySession, err := enrollments.ListBySession(ctx, 100, nil)
	require.NoError(t, err)
	require.Len(t, bySession, 2)
	assert.Equal(t, older.ID, bySession[0].ID, "session listing is oldest first")

	approved := domain.StatusApproved
	none, err := enrollments.ListBySession(ctx, 100, &approved)
	require.NoError(t, err)
	assert.Empty(t, none)

	byUser, err := enrollments.ListByUser(ctx, 2)
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, newer.ID, byUser[0].ID)
}

func TestStore_LoadSeed(t *testing.T) {
	s := memory.New(nil)
	doc := `
users:
  - id: 1
    display_name: Kim
courses:
  - id: 10
    name: Go in Practice
    max_enrollment: 1
sessions:
  - id: 100
    course_id: 10
    name: Spring
    start_date: 2024-04-01T00:00:00Z
    end_date: 2024-06-01T00:00:00Z
    recruitment_end_at: 2024-03-25T00:00:00Z
`
	require.NoError(t, s.LoadSeed(strings.NewReader(doc)))

	snap, err := s.Stores().Catalog.GetSession(context.Background(), 100)
	require.NoError(t, err)
	require.NotNil(t, snap.RecruitmentEndAt)
	assert.Equal(t, 2024, snap.RecruitmentEndAt.Year())
	assert.Nil(t, snap.RecruitmentStartAt)

	u, err := s.Stores().Users.GetUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Kim", u.DisplayName)

	bad := `
sessions:
  - id: 5
    course_id: 99
    name: orphan
`
	assert.Error(t, s.LoadSeed(strings.NewReader(bad)))
}
