package enrollment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/phrazzld/coursehub-api/internal/platform/logger"
	"github.com/phrazzld/coursehub-api/internal/store"
	"github.com/sethvargo/go-retry"
)

const minRetryDelay = time.Millisecond

// RetryObserver is told about every unit of work that lost a race and is
// about to be retried.
type RetryObserver interface {
	ObserveRetry(operation string, attempt int)
}

type noopObserver struct{}

func (noopObserver) ObserveRetry(string, int) {}

// runUnit runs fn in a unit of work, retrying it from scratch on
// store.ErrConcurrencyConflict. Any other error ends the loop immediately.
// Once retries are exhausted the conflict itself is returned, as it is when
// ctx ends while waiting to retry.
func (l *ledger) runUnit(ctx context.Context, op string, fn store.UnitOfWorkFn) error {
	log := logger.FromContextOrDefault(ctx, l.logger)

	delay := l.cfg.RetryBaseDelay
	if delay < minRetryDelay {
		delay = minRetryDelay
	}
	backoff := retry.WithMaxRetries(uint64(l.cfg.MaxRetries), retry.NewExponential(delay))

	attempt := 0
	var conflict error
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := l.uow.Do(ctx, fn)
		if err == nil || !errors.Is(err, store.ErrConcurrencyConflict) {
			return err
		}
		conflict = err

		if attempt <= l.cfg.MaxRetries {
			log.Warn("unit of work conflicted, retrying",
				slog.String("operation", op),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			l.observer.ObserveRetry(op, attempt)
		}
		return retry.RetryableError(err)
	})
	if conflict != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return conflict
	}
	return err
}
