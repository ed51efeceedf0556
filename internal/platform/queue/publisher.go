package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/phrazzld/coursehub-api/internal/events"
	"github.com/phrazzld/coursehub-api/internal/platform/logger"
)

// DefaultQueue is the queue enrollment tasks go to when none is configured.
const DefaultQueue = "enrollment"

// maxTaskRetry bounds how often a consumer may retry a delivered task.
const maxTaskRetry = 5

// Enqueuer is the subset of *asynq.Client the publisher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Publisher forwards enrollment events to an asynq queue.
type Publisher struct {
	enqueuer Enqueuer
	queue    string
	logger   *slog.Logger
}

var _ events.EventHandler = (*Publisher)(nil)

// NewPublisher creates a Publisher that enqueues on queue.
func NewPublisher(enqueuer Enqueuer, queue string, log *slog.Logger) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		enqueuer: enqueuer,
		queue:    queue,
		logger:   log.With(slog.String("component", "queue_publisher")),
	}
}

// TaskType maps an event type such as "enrollment.approved" to the task
// type "enrollment:approved".
func TaskType(t events.EventType) string {
	return strings.Replace(string(t), ".", ":", 1)
}

// NewEnrollmentTask builds the asynq task carrying event.
func NewEnrollmentTask(event *events.EnrollmentEvent) (*asynq.Task, error) {
	payload, err := event.Payload()
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", event.Type, err)
	}
	return asynq.NewTask(TaskType(event.Type), payload), nil
}

// HandleEvent implements events.EventHandler.
// The event ID is used as task ID so a redelivered event is not queued twice.
func (p *Publisher) HandleEvent(ctx context.Context, event *events.EnrollmentEvent) error {
	log := logger.FromContextOrDefault(ctx, p.logger)

	task, err := NewEnrollmentTask(event)
	if err != nil {
		return err
	}

	info, err := p.enqueuer.EnqueueContext(ctx, task,
		asynq.Queue(p.queue),
		asynq.MaxRetry(maxTaskRetry),
		asynq.TaskID(event.ID.String()))
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", task.Type(), err)
	}

	log.Debug("enqueued enrollment task",
		slog.String("task_type", task.Type()),
		slog.String("task_id", info.ID),
		slog.String("queue", info.Queue))
	return nil
}
