package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// classifiable matches the root package's CategorizedError without
// importing it.
type classifiable interface {
	error
	Retryable() bool
	RetryAfter() time.Duration
}

func isRetryable(err error) bool {
	var ce classifiable
	if errors.As(err, &ce) {
		return ce.Retryable()
	}
	return false
}

// effectiveDelay returns the delay to use, honoring the server's
// retry-after hint when it exceeds the computed backoff.
func effectiveDelay(configuredDelay time.Duration, err error) time.Duration {
	var ce classifiable
	if errors.As(err, &ce) {
		if serverDelay := ce.RetryAfter(); serverDelay > configuredDelay {
			return serverDelay
		}
	}
	return configuredDelay
}

// ExhaustedError is the terminal failure after the attempt ceiling is
// reached. It carries the last underlying cause and the number of attempts
// made.
type ExhaustedError struct {
	Attempts int
	Err      error
}

// Error reports the attempt count and the last cause.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last underlying error.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do executes fn with retry logic. Retryable failures are re-attempted up
// to cfg.MaxAttempts with exponential backoff; non-retryable failures
// surface immediately after a single attempt. Exhausting the ceiling
// returns an *ExhaustedError. Context cancellation is observed during
// backoff waits.
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	return DoWithEvents(ctx, cfg, nil, fn)
}

// DoWithEvents is like Do but emits events for observability. Events are
// sent non-blocking; if the channel is full they are dropped. A nil channel
// disables emission.
func DoWithEvents[T any](ctx context.Context, cfg Config, events chan<- Event, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		emit(events, Event{
			Type:        EventAttemptStart,
			Attempt:     attempt + 1,
			MaxAttempts: cfg.MaxAttempts,
		})

		result, err := fn()
		if err == nil {
			emit(events, Event{
				Type:        EventSuccess,
				Attempt:     attempt + 1,
				MaxAttempts: cfg.MaxAttempts,
			})
			return result, nil
		}

		lastErr = err
		retryable := isRetryable(err)

		emit(events, Event{
			Type:        EventAttemptFailed,
			Attempt:     attempt + 1,
			MaxAttempts: cfg.MaxAttempts,
			Error:       err,
			Retryable:   retryable,
		})

		if !retryable {
			return zero, err
		}

		// Don't sleep after the last attempt
		if attempt < cfg.MaxAttempts-1 {
			delay := effectiveDelay(cfg.Delay(attempt), err)

			emit(events, Event{
				Type:        EventRetrying,
				Attempt:     attempt + 1,
				MaxAttempts: cfg.MaxAttempts,
				Delay:       delay,
			})

			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	emit(events, Event{
		Type:        EventExhausted,
		Attempt:     cfg.MaxAttempts,
		MaxAttempts: cfg.MaxAttempts,
		Error:       lastErr,
	})

	return zero, &ExhaustedError{Attempts: cfg.MaxAttempts, Err: lastErr}
}
