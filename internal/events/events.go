package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/coursehub-api/internal/domain"
)

// EventType names a committed enrollment lifecycle change.
type EventType string

// Enrollment lifecycle events
const (
	EnrollmentRequested EventType = "enrollment.requested"
	EnrollmentApproved  EventType = "enrollment.approved"
	EnrollmentRejected  EventType = "enrollment.rejected"
	EnrollmentCancelled EventType = "enrollment.cancelled"
	EnrollmentCompleted EventType = "enrollment.completed"
)

// EnrollmentEvent describes a lifecycle change after it has been committed.
// Reporting and survey consumers receive it through the registered handlers.
type EnrollmentEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	Type         EventType               `json:"type"`
	EnrollmentID int64                   `json:"enrollment_id"`
	UserID       int64                   `json:"user_id"`
	SessionID    int64                   `json:"session_id"`
	CourseID     int64                   `json:"course_id,omitempty"`
	Status       domain.EnrollmentStatus `json:"status"`
	Reason       string                  `json:"reason,omitempty"`

	AttendanceRate *float64 `json:"attendance_rate,omitempty"`
	CompletionRate *float64 `json:"completion_rate,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

// NewEnrollmentEvent builds an event of type t from the committed state of e.
func NewEnrollmentEvent(t EventType, e *domain.Enrollment, courseID int64, reason string, at time.Time) *EnrollmentEvent {
	return &EnrollmentEvent{
		ID:             uuid.New(),
		Type:           t,
		EnrollmentID:   e.ID,
		UserID:         e.UserID,
		SessionID:      e.SessionID,
		CourseID:       courseID,
		Status:         e.Status,
		Reason:         reason,
		AttendanceRate: e.AttendanceRate,
		CompletionRate: e.CompletionRate,
		OccurredAt:     at.UTC(),
	}
}

// Payload encodes the event as JSON.
func (e *EnrollmentEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *EnrollmentEvent) error
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(ctx context.Context, event *EnrollmentEvent) error

// HandleEvent calls f(ctx, event).
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *EnrollmentEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *EnrollmentEvent) error
}
