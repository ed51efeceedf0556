package enrollment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/coursehub-api/internal/domain"
	"github.com/phrazzld/coursehub-api/internal/events"
	"github.com/phrazzld/coursehub-api/internal/platform/logger"
	"github.com/phrazzld/coursehub-api/internal/store"
)

// AutoApproveReason is recorded as the process reason of enrollments
// approved by the enroll operation itself.
const AutoApproveReason = "auto-approved"

// Clock returns the current time.
type Clock func() time.Time

// Config controls ledger policy.
type Config struct {
	// AutoApprove makes Enroll try to approve the new enrollment in the
	// same unit of work. When the approval guard fails the enrollment
	// stays PENDING.
	AutoApprove bool

	// MaxRetries bounds how many times a conflicting unit of work is rerun.
	MaxRetries int

	// RetryBaseDelay is the first backoff delay; it doubles per retry.
	RetryBaseDelay time.Duration
}

// Ledger owns enrollment records and the seat counters they affect.
type Ledger interface {
	// Enroll creates a PENDING enrollment for the user in the session.
	Enroll(ctx context.Context, userID, sessionID int64, applyReason string) (*EnrollmentView, error)

	// Approve takes a seat for a pending enrollment.
	Approve(ctx context.Context, enrollmentID int64, reason string) (*EnrollmentView, error)

	// Reject declines a pending enrollment.
	Reject(ctx context.Context, enrollmentID int64, reason string) (*EnrollmentView, error)

	// Cancel withdraws the caller's own pending or approved enrollment and
	// releases its seat if one was taken.
	Cancel(ctx context.Context, userID, enrollmentID int64, reason string) (*EnrollmentView, error)

	// Complete records attendance and completion rates, once, on an
	// approved enrollment.
	Complete(ctx context.Context, enrollmentID int64, attendanceRate, completionRate float64) (*EnrollmentView, error)

	// Get returns a single enrollment.
	Get(ctx context.Context, enrollmentID int64) (*EnrollmentView, error)

	// ListBySession returns the enrollments of a session, optionally
	// filtered by status.
	ListBySession(ctx context.Context, sessionID int64, status *domain.EnrollmentStatus) ([]*EnrollmentView, error)
}

// Option configures a ledger.
type Option func(*ledger)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(l *ledger) { l.clock = c }
}

// WithEmitter publishes committed transitions through e.
func WithEmitter(e events.EventEmitter) Option {
	return func(l *ledger) { l.emitter = e }
}

// WithRetryObserver reports conflict retries to o.
func WithRetryObserver(o RetryObserver) Option {
	return func(l *ledger) { l.observer = o }
}

type ledger struct {
	uow      store.UnitOfWork
	cfg      Config
	clock    Clock
	emitter  events.EventEmitter
	observer RetryObserver
	logger   *slog.Logger
}

var _ Ledger = (*ledger)(nil)

// NewLedger creates a Ledger backed by uow.
// It returns an error if uow is nil or cfg is out of range.
func NewLedger(uow store.UnitOfWork, cfg Config, log *slog.Logger, opts ...Option) (Ledger, error) {
	if uow == nil {
		return nil, fmt.Errorf("%w: unit of work cannot be nil", domain.ErrValidation)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("%w: max retries cannot be negative", domain.ErrValidation)
	}

	if log == nil {
		log = slog.Default()
	}

	l := &ledger{
		uow:      uow,
		cfg:      cfg,
		clock:    time.Now,
		observer: noopObserver{},
		logger:   log.With(slog.String("component", "enrollment_ledger")),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// pending collects what a unit of work produced. It is reset on every
// attempt so a retried unit never publishes stale events.
type pending struct {
	view   *EnrollmentView
	events []*events.EnrollmentEvent
}

func (p *pending) emit(t events.EventType, e *domain.Enrollment, courseID int64, reason string, at time.Time) {
	p.events = append(p.events, events.NewEnrollmentEvent(t, e, courseID, reason, at))
}

func (l *ledger) Enroll(ctx context.Context, userID, sessionID int64, applyReason string) (*EnrollmentView, error) {
	log := logger.FromContextOrDefault(ctx, l.logger).With(
		slog.Int64("user_id", userID),
		slog.Int64("session_id", sessionID))

	var out pending
	err := l.runUnit(ctx, "enroll", func(ctx context.Context, s store.Stores) error {
		out = pending{}
		now := l.clock().UTC()

		user, err := s.Users.GetUser(ctx, userID)
		if err != nil {
			return err
		}

		// The session row is locked only when a seat may be taken here.
		getSession := s.Catalog.GetSession
		if l.cfg.AutoApprove {
			getSession = s.Catalog.GetSessionForUpdate
		}
		sess, err := getSession(ctx, sessionID)
		if err != nil {
			return err
		}

		if _, err := s.Enrollments.FindLive(ctx, userID, sessionID); err == nil {
			return domain.ErrAlreadyEnrolled
		} else if !store.IsNotFoundError(err) {
			return err
		}

		if err := sess.CheckRecruitmentWindow(now); err != nil {
			return err
		}
		if err := sess.CheckCapacity(); err != nil {
			return err
		}

		e, err := domain.NewEnrollment(userID, sessionID, applyReason, now)
		if err != nil {
			return err
		}
		if err := s.Enrollments.Create(ctx, e); err != nil {
			if store.IsDuplicateError(err) {
				return domain.ErrAlreadyEnrolled
			}
			return err
		}
		out.emit(events.EnrollmentRequested, e, sess.CourseID, applyReason, now)

		// The session is locked and its capacity was checked above, so
		// approval cannot be declined by the current guards. The declined
		// branch is defensive: approve runs every guard before its first
		// write, so a decline keeps the new record PENDING with nothing else
		// changed.
		if l.cfg.AutoApprove {
			err := l.approve(ctx, s, e, sess, AutoApproveReason, now)
			switch {
			case err == nil:
				out.emit(events.EnrollmentApproved, e, sess.CourseID, AutoApproveReason, now)
			case domain.IsInvalidOperation(err):
				log.Info("auto-approval declined, enrollment left pending",
					slog.Int64("enrollment_id", e.ID),
					slog.String("reason", domain.Reason(err)))
			default:
				return err
			}
		}

		out.view, err = newProjector(s).seed(user, sess).view(ctx, e)
		return err
	})
	if err != nil {
		log.Debug("enroll failed", slog.String("error", err.Error()))
		return nil, wrap("enroll", err)
	}

	log.Info("enrollment created",
		slog.Int64("enrollment_id", out.view.ID),
		slog.String("status", string(out.view.Status)))
	l.publish(ctx, out.events)
	return out.view, nil
}

// approve re-validates the approval guard against a locked session and
// takes the seat. sess must have been read with GetSessionForUpdate. Rule
// violations are only returned before anything is written.
func (l *ledger) approve(ctx context.Context, s store.Stores, e *domain.Enrollment, sess *domain.SessionSnapshot, reason string, now time.Time) error {
	if _, err := e.Status.Next(domain.TransitionApprove); err != nil {
		return err
	}
	if err := sess.CheckCapacity(); err != nil {
		return err
	}
	if err := e.Approve(reason, now); err != nil {
		return err
	}
	if err := s.Enrollments.Update(ctx, e); err != nil {
		return err
	}
	if err := s.Catalog.AdjustEnrollmentCount(ctx, sess.SessionID, 1); err != nil {
		return err
	}
	if err := s.Catalog.AdjustCourseEnrollmentCount(ctx, sess.CourseID, 1); err != nil {
		return err
	}
	sess.CurrentEnrollment++
	sess.CourseEnrollmentCount++
	return nil
}

func (l *ledger) Approve(ctx context.Context, enrollmentID int64, reason string) (*EnrollmentView, error) {
	log := logger.FromContextOrDefault(ctx, l.logger).With(slog.Int64("enrollment_id", enrollmentID))

	var out pending
	err := l.runUnit(ctx, "approve", func(ctx context.Context, s store.Stores) error {
		out = pending{}
		now := l.clock().UTC()

		e, err := s.Enrollments.GetForUpdate(ctx, enrollmentID)
		if err != nil {
			return err
		}
		sess, err := s.Catalog.GetSessionForUpdate(ctx, e.SessionID)
		if err != nil {
			return err
		}
		if err := l.approve(ctx, s, e, sess, reason, now); err != nil {
			return err
		}
		out.emit(events.EnrollmentApproved, e, sess.CourseID, reason, now)

		out.view, err = newProjector(s).seed(nil, sess).view(ctx, e)
		return err
	})
	if err != nil {
		log.Debug("approve failed", slog.String("error", err.Error()))
		return nil, wrap("approve", err)
	}

	log.Info("enrollment approved", slog.Int64("session_id", out.view.SessionID))
	l.publish(ctx, out.events)
	return out.view, nil
}

func (l *ledger) Reject(ctx context.Context, enrollmentID int64, reason string) (*EnrollmentView, error) {
	log := logger.FromContextOrDefault(ctx, l.logger).With(slog.Int64("enrollment_id", enrollmentID))

	var out pending
	err := l.runUnit(ctx, "reject", func(ctx context.Context, s store.Stores) error {
		out = pending{}
		now := l.clock().UTC()

		e, err := s.Enrollments.GetForUpdate(ctx, enrollmentID)
		if err != nil {
			return err
		}
		if err := e.Reject(reason, now); err != nil {
			return err
		}
		if err := s.Enrollments.Update(ctx, e); err != nil {
			return err
		}

		out.view, err = newProjector(s).view(ctx, e)
		if err != nil {
			return err
		}
		out.emit(events.EnrollmentRejected, e, out.view.CourseID, reason, now)
		return nil
	})
	if err != nil {
		log.Debug("reject failed", slog.String("error", err.Error()))
		return nil, wrap("reject", err)
	}

	log.Info("enrollment rejected")
	l.publish(ctx, out.events)
	return out.view, nil
}

func (l *ledger) Cancel(ctx context.Context, userID, enrollmentID int64, reason string) (*EnrollmentView, error) {
	log := logger.FromContextOrDefault(ctx, l.logger).With(
		slog.Int64("enrollment_id", enrollmentID),
		slog.Int64("user_id", userID))

	var out pending
	err := l.runUnit(ctx, "cancel", func(ctx context.Context, s store.Stores) error {
		out = pending{}
		now := l.clock().UTC()

		e, err := s.Enrollments.GetForUpdate(ctx, enrollmentID)
		if err != nil {
			return err
		}
		sess, err := s.Catalog.GetSessionForUpdate(ctx, e.SessionID)
		if err != nil {
			return err
		}

		prior, err := e.Cancel(userID, reason, now)
		if err != nil {
			return err
		}
		if err := s.Enrollments.Update(ctx, e); err != nil {
			return err
		}

		// Only an approved enrollment holds a seat.
		if prior == domain.StatusApproved {
			if err := s.Catalog.AdjustEnrollmentCount(ctx, sess.SessionID, -1); err != nil {
				return err
			}
			if err := s.Catalog.AdjustCourseEnrollmentCount(ctx, sess.CourseID, -1); err != nil {
				return err
			}
		}
		out.emit(events.EnrollmentCancelled, e, sess.CourseID, reason, now)

		out.view, err = newProjector(s).seed(nil, sess).view(ctx, e)
		return err
	})
	if err != nil {
		log.Debug("cancel failed", slog.String("error", err.Error()))
		return nil, wrap("cancel", err)
	}

	log.Info("enrollment cancelled")
	l.publish(ctx, out.events)
	return out.view, nil
}

func (l *ledger) Complete(ctx context.Context, enrollmentID int64, attendanceRate, completionRate float64) (*EnrollmentView, error) {
	log := logger.FromContextOrDefault(ctx, l.logger).With(slog.Int64("enrollment_id", enrollmentID))

	var out pending
	err := l.runUnit(ctx, "complete", func(ctx context.Context, s store.Stores) error {
		out = pending{}
		now := l.clock().UTC()

		e, err := s.Enrollments.GetForUpdate(ctx, enrollmentID)
		if err != nil {
			return err
		}
		if err := e.Complete(attendanceRate, completionRate, now); err != nil {
			return err
		}
		if err := s.Enrollments.Update(ctx, e); err != nil {
			return err
		}

		out.view, err = newProjector(s).view(ctx, e)
		if err != nil {
			return err
		}
		out.emit(events.EnrollmentCompleted, e, out.view.CourseID, "", now)
		return nil
	})
	if err != nil {
		log.Debug("complete failed", slog.String("error", err.Error()))
		return nil, wrap("complete", err)
	}

	log.Info("enrollment completed",
		slog.Float64("attendance_rate", attendanceRate),
		slog.Float64("completion_rate", completionRate))
	l.publish(ctx, out.events)
	return out.view, nil
}

func (l *ledger) Get(ctx context.Context, enrollmentID int64) (*EnrollmentView, error) {
	s := l.uow.Stores()

	e, err := s.Enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, wrap("get", err)
	}
	v, err := newProjector(s).view(ctx, e)
	if err != nil {
		return nil, wrap("get", err)
	}
	return v, nil
}

func (l *ledger) ListBySession(ctx context.Context, sessionID int64, status *domain.EnrollmentStatus) ([]*EnrollmentView, error) {
	s := l.uow.Stores()

	sess, err := s.Catalog.GetSession(ctx, sessionID)
	if err != nil {
		return nil, wrap("list_by_session", err)
	}
	list, err := s.Enrollments.ListBySession(ctx, sessionID, status)
	if err != nil {
		return nil, wrap("list_by_session", err)
	}
	views, err := newProjector(s).seed(nil, sess).views(ctx, list)
	if err != nil {
		return nil, wrap("list_by_session", err)
	}
	return views, nil
}

// publish hands committed events to the emitter. Failures are logged only.
// The transition is already durable, so a caller that has gone away must
// not stop its events.
func (l *ledger) publish(ctx context.Context, evs []*events.EnrollmentEvent) {
	if l.emitter == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	log := logger.FromContextOrDefault(ctx, l.logger)
	for _, ev := range evs {
		if err := l.emitter.EmitEvent(ctx, ev); err != nil {
			log.Error("failed to publish enrollment event",
				slog.String("event_type", string(ev.Type)),
				slog.Int64("enrollment_id", ev.EnrollmentID),
				slog.String("error", err.Error()))
		}
	}
}
