package enrollment_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/coursehub-api/internal/domain"
	"github.com/phrazzld/coursehub-api/internal/events"
	"github.com/phrazzld/coursehub-api/internal/platform/memory"
	"github.com/phrazzld/coursehub-api/internal/service/enrollment"
	"github.com/phrazzld/coursehub-api/internal/store"
	"github.com/stretchr/testify/require"
)

const (
	userA     int64 = 1
	userB     int64 = 2
	userC     int64 = 3
	courseID  int64 = 10
	sessionID int64 = 100
)

var testNow = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(i int) *int { return &i }

func timePtr(t time.Time) *time.Time { return &t }

// recordingEmitter keeps every event it is given. With honorContext set it
// drops events whose context is already done, like a network publisher.
type recordingEmitter struct {
	mu           sync.Mutex
	events       []*events.EnrollmentEvent
	err          error
	honorContext bool
}

func (r *recordingEmitter) EmitEvent(ctx context.Context, ev *events.EnrollmentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.honorContext && ctx.Err() != nil {
		return ctx.Err()
	}
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingEmitter) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

// countingObserver counts conflict retries.
type countingObserver struct {
	mu      sync.Mutex
	retries map[string]int
}

func (c *countingObserver) ObserveRetry(op string, _ int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.retries == nil {
		c.retries = make(map[string]int)
	}
	c.retries[op]++
}

func (c *countingObserver) count(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retries[op]
}

// flakyUnitOfWork fails the first conflicts calls to Do with a
// concurrency conflict before delegating.
type flakyUnitOfWork struct {
	store.UnitOfWork

	mu        sync.Mutex
	conflicts int
	calls     int
}

func (f *flakyUnitOfWork) Do(ctx context.Context, fn store.UnitOfWorkFn) error {
	f.mu.Lock()
	f.calls++
	fail := f.conflicts > 0
	if fail {
		f.conflicts--
	}
	f.mu.Unlock()

	if fail {
		return fmt.Errorf("commit: %w", store.ErrConcurrencyConflict)
	}
	return f.UnitOfWork.Do(ctx, fn)
}

func (f *flakyUnitOfWork) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// cancelAfterCommit cancels the caller's context once a unit of work has
// committed, as when a client disconnects before the response is written.
type cancelAfterCommit struct {
	store.UnitOfWork
	cancel context.CancelFunc
}

func (c *cancelAfterCommit) Do(ctx context.Context, fn store.UnitOfWorkFn) error {
	err := c.UnitOfWork.Do(ctx, fn)
	if err == nil {
		c.cancel()
	}
	return err
}

// cancellingObserver cancels the caller's context on the first retry.
type cancellingObserver struct {
	cancel context.CancelFunc
}

func (c cancellingObserver) ObserveRetry(string, int) { c.cancel() }

type fixture struct {
	mem     *memory.Store
	ledger  enrollment.Ledger
	query   enrollment.QueryService
	emitter *recordingEmitter
	now     time.Time
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	capacity    *int
	autoApprove bool
	window      [2]*time.Time
	uow         func(*memory.Store) store.UnitOfWork
	maxRetries  int
	opts        []enrollment.Option
}

func withCapacity(n int) fixtureOption {
	return func(c *fixtureConfig) { c.capacity = intPtr(n) }
}

func withAutoApprove() fixtureOption {
	return func(c *fixtureConfig) { c.autoApprove = true }
}

func withWindow(start, end *time.Time) fixtureOption {
	return func(c *fixtureConfig) { c.window = [2]*time.Time{start, end} }
}

func withUnitOfWork(wrap func(*memory.Store) store.UnitOfWork) fixtureOption {
	return func(c *fixtureConfig) { c.uow = wrap }
}

func withMaxRetries(n int) fixtureOption {
	return func(c *fixtureConfig) { c.maxRetries = n }
}

func withLedgerOptions(opts ...enrollment.Option) fixtureOption {
	return func(c *fixtureConfig) { c.opts = append(c.opts, opts...) }
}

// newFixture seeds three users and one recruiting session whose window
// spans testNow.
func newFixture(t *testing.T, options ...fixtureOption) *fixture {
	t.Helper()

	cfg := fixtureConfig{
		window:     [2]*time.Time{timePtr(testNow.Add(-24 * time.Hour)), timePtr(testNow.Add(24 * time.Hour))},
		maxRetries: 3,
	}
	for _, o := range options {
		o(&cfg)
	}

	mem := memory.New(discardLogger())
	mem.PutUser(domain.User{ID: userA, DisplayName: "Alice"})
	mem.PutUser(domain.User{ID: userB, DisplayName: "Bob"})
	mem.PutUser(domain.User{ID: userC, DisplayName: "Carol"})
	mem.PutCourse(memory.Course{ID: courseID, Name: "Go Concurrency", MaxEnrollment: cfg.capacity})
	mem.PutSession(memory.Session{
		ID:                 sessionID,
		CourseID:           courseID,
		Name:               "Spring cohort",
		Status:             domain.SessionRecruiting,
		StartDate:          testNow.Add(7 * 24 * time.Hour),
		EndDate:            testNow.Add(37 * 24 * time.Hour),
		RecruitmentStartAt: cfg.window[0],
		RecruitmentEndAt:   cfg.window[1],
	})

	var uow store.UnitOfWork = mem
	if cfg.uow != nil {
		uow = cfg.uow(mem)
	}

	emitter := &recordingEmitter{}
	opts := append([]enrollment.Option{
		enrollment.WithClock(func() time.Time { return testNow }),
		enrollment.WithEmitter(emitter),
	}, cfg.opts...)

	l, err := enrollment.NewLedger(uow, enrollment.Config{
		AutoApprove:    cfg.autoApprove,
		MaxRetries:     cfg.maxRetries,
		RetryBaseDelay: time.Millisecond,
	}, discardLogger(), opts...)
	require.NoError(t, err)

	return &fixture{
		mem:     mem,
		ledger:  l,
		query:   enrollment.NewQueryService(mem.Stores(), discardLogger()),
		emitter: emitter,
		now:     testNow,
	}
}

func (f *fixture) enroll(t *testing.T, userID int64) *enrollment.EnrollmentView {
	t.Helper()
	v, err := f.ledger.Enroll(context.Background(), userID, sessionID, "")
	require.NoError(t, err)
	return v
}

func (f *fixture) approve(t *testing.T, id int64) *enrollment.EnrollmentView {
	t.Helper()
	v, err := f.ledger.Approve(context.Background(), id, "ok")
	require.NoError(t, err)
	return v
}

// liveCount returns how many PENDING or APPROVED enrollments the user
// holds in the session.
func (f *fixture) liveCount(userID int64) int {
	n := 0
	for _, e := range f.mem.Enrollments() {
		if e.UserID == userID && e.SessionID == sessionID && e.Status.IsLive() {
			n++
		}
	}
	return n
}

func (f *fixture) approvedCount() int {
	n := 0
	for _, e := range f.mem.Enrollments() {
		if e.SessionID == sessionID && e.Status == domain.StatusApproved {
			n++
		}
	}
	return n
}

// memorySession returns an open session of the fixture course.
func memorySession(id int64, name string) memory.Session {
	return memory.Session{
		ID:        id,
		CourseID:  courseID,
		Name:      name,
		Status:    domain.SessionRecruiting,
		StartDate: testNow.Add(30 * 24 * time.Hour),
		EndDate:   testNow.Add(60 * 24 * time.Hour),
	}
}
