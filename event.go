package modelgate

import (
	"time"

	"github.com/modelgate/modelgate/retry"
)

// EventType identifies the kind of event occurring during dispatch.
type EventType string

const (
	// EventRequestStart fires when a generate call has been admitted by
	// the connection limiter and is about to hit the backend.
	EventRequestStart EventType = "request_start"

	// EventRequestComplete fires after a generate call succeeds.
	EventRequestComplete EventType = "request_complete"

	// EventRequestError fires when a generate call fails terminally.
	EventRequestError EventType = "request_error"

	// EventRetry fires for each retry engine event (forwarded from the
	// retry package).
	EventRetry EventType = "retry"
)

// Event is an observable occurrence during model dispatch.
type Event struct {
	// Type identifies the kind of event.
	Type EventType

	// RequestID correlates the events of one generate call.
	RequestID string

	// Model is the "provider/model-name" handling the call.
	Model string

	// Duration is the elapsed time for completed or failed requests.
	Duration time.Duration

	// Usage contains token accounting for completed requests.
	Usage *Usage

	// Error contains the terminal error for EventRequestError.
	Error error

	// RetryEvent contains the underlying retry event for EventRetry.
	RetryEvent *retry.Event

	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// emit sends an event with timestamp to the channel without blocking.
// A full channel drops the event rather than stalling dispatch.
func emit(ch chan<- Event, event Event) {
	if ch == nil {
		return
	}
	event.Timestamp = time.Now()
	select {
	case ch <- event:
	default:
	}
}
