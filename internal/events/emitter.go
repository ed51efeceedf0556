package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// InMemoryEventEmitter is a simple implementation of the EventEmitter interface
// that stores registered handlers in memory and dispatches events to them
// synchronously, in registration order.
type InMemoryEventEmitter struct {
	handlers []EventHandler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewInMemoryEventEmitter creates a new instance of InMemoryEventEmitter.
// If logger is nil, a default logger will be used.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventEmitter{
		handlers: make([]EventHandler, 0),
		logger:   logger.With(slog.String("component", "in_memory_event_emitter")),
	}
}

// Ensure InMemoryEventEmitter implements EventEmitter interface
var _ EventEmitter = (*InMemoryEventEmitter)(nil)

// RegisterHandler adds a new event handler to receive events.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered new event handler", slog.Int("handler_count", len(e.handlers)))
}

// EmitEvent publishes the given event to all registered handlers.
// If any handler returns an error, the event will still be sent to all other handlers,
// and the errors of all failing handlers are returned joined.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *EnrollmentEvent) error {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	e.logger.Debug("emitting event",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", string(event.Type)),
		slog.Int("handler_count", len(handlers)))

	var errs []error
	for i, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			e.logger.Error("handler failed to process event",
				slog.String("error", err.Error()),
				slog.Int("handler_index", i),
				slog.String("event_id", event.ID.String()),
				slog.String("event_type", string(event.Type)))
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// LoggingHandler records every event at info level.
type LoggingHandler struct {
	logger *slog.Logger
}

// NewLoggingHandler creates a LoggingHandler. If logger is nil, a default
// logger will be used.
func NewLoggingHandler(logger *slog.Logger) *LoggingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingHandler{logger: logger.With(slog.String("component", "enrollment_events"))}
}

// HandleEvent implements EventHandler.
func (h *LoggingHandler) HandleEvent(_ context.Context, event *EnrollmentEvent) error {
	h.logger.Info("enrollment event",
		slog.String("event_type", string(event.Type)),
		slog.Int64("enrollment_id", event.EnrollmentID),
		slog.Int64("user_id", event.UserID),
		slog.Int64("session_id", event.SessionID),
		slog.String("status", string(event.Status)))
	return nil
}
