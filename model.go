package modelgate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/modelgate/modelgate/limit"
	"github.com/modelgate/modelgate/retry"
)

// Model is an addressable model client: one backend bound to its effective
// generation config, a connection limiter, and a retry policy. Clients
// obtained from a [Registry] with memoization are shared by all callers
// holding the same key; concurrent Generate calls are legal and
// independently subject to the shared limiter.
type Model struct {
	name      Name
	backend   Backend
	config    GenerateConfig
	limiter   *limit.Limiter
	retryBase retry.Config
	events    chan<- Event

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// ModelOption configures a Model at construction.
type ModelOption func(*Model)

// WithRetryPolicy overrides the default retry backoff tuning. The attempt
// ceiling can still be narrowed per call via the MaxRetries config field.
func WithRetryPolicy(cfg retry.Config) ModelOption {
	return func(m *Model) {
		m.retryBase = cfg
	}
}

// WithEventChannel attaches an observability event channel. Events are
// sent non-blocking; a full channel drops them.
func WithEventChannel(ch chan<- Event) ModelOption {
	return func(m *Model) {
		m.events = ch
	}
}

// NewModel binds a backend to its effective config. The connection limit is
// taken from cfg.MaxConnections (default DefaultMaxConnections). Most
// callers should obtain clients from a [Registry] instead, which adds
// caching and backend construction.
func NewModel(name Name, backend Backend, cfg GenerateConfig, opts ...ModelOption) *Model {
	capacity := DefaultMaxConnections
	if cfg.MaxConnections != nil && *cfg.MaxConnections > 0 {
		capacity = *cfg.MaxConnections
	}
	m := &Model{
		name:      name,
		backend:   backend,
		config:    cfg,
		limiter:   limit.New(capacity),
		retryBase: retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the model's "provider/model-name" identity.
func (m *Model) Name() Name {
	return m.name
}

// Config returns the client's effective generation config.
func (m *Model) Config() GenerateConfig {
	return m.config
}

// InFlight returns the number of backend calls currently admitted.
func (m *Model) InFlight() int {
	return m.limiter.InFlight()
}

// Generate performs one generation call. Call-site options are merged over
// the client's effective config, a connection slot is acquired (waiting
// FIFO behind other callers when the client is saturated), and the backend
// call runs under the retry policy within that single slot. The slot is
// released on every exit path, including cancellation.
func (m *Model) Generate(ctx context.Context, prompt string, opts ...Option) (*Response, error) {
	if m.closed.Load() {
		return nil, ErrClientClosed
	}

	cfg := m.config.Merge(ApplyOptions(opts...))

	ticket, err := m.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer ticket.Release()

	// Re-check after waiting in the queue so a Close during the wait
	// fails fast instead of hitting a released backend.
	if m.closed.Load() {
		return nil, ErrClientClosed
	}

	requestID := uuid.NewString()
	start := time.Now()
	emit(m.events, Event{
		Type:      EventRequestStart,
		RequestID: requestID,
		Model:     m.name.String(),
	})

	var retryEvents chan retry.Event
	if m.events != nil {
		retryEvents = make(chan retry.Event, 10)
		go m.forwardRetryEvents(retryEvents, requestID)
	}

	resp, err := retry.DoWithEvents(ctx, m.retryConfig(cfg), retryEvents, func() (*Response, error) {
		return m.attempt(ctx, prompt, cfg)
	})

	if retryEvents != nil {
		close(retryEvents)
	}

	if err != nil {
		emit(m.events, Event{
			Type:      EventRequestError,
			RequestID: requestID,
			Model:     m.name.String(),
			Duration:  time.Since(start),
			Error:     err,
		})
		return nil, err
	}

	emit(m.events, Event{
		Type:      EventRequestComplete,
		RequestID: requestID,
		Model:     m.name.String(),
		Duration:  time.Since(start),
		Usage:     &resp.Usage,
	})
	return resp, nil
}

// attempt runs a single backend invocation with a per-attempt timeout, so
// retries each get a fresh budget.
func (m *Model) attempt(ctx context.Context, prompt string, cfg GenerateConfig) (*Response, error) {
	attemptCtx := ctx
	if cfg.Timeout != nil {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, *cfg.Timeout)
		defer cancel()
	}

	started := time.Now()
	resp, err := m.backend.Generate(attemptCtx, prompt, cfg)
	if err != nil {
		// An expired per-attempt deadline is transient as long as the
		// caller's own context is still live.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, NewTransientError("generate attempt timed out", 0, err)
		}
		return nil, err
	}

	resp.Time = time.Since(started)
	if resp.Model == "" {
		resp.Model = m.name.String()
	}
	if resp.Usage.TotalTokens == 0 {
		resp.Usage.TotalTokens = resp.Usage.InputTokens + resp.Usage.OutputTokens
	}
	return resp, nil
}

// retryConfig derives the retry policy for one call from the effective
// config.
func (m *Model) retryConfig(cfg GenerateConfig) retry.Config {
	rcfg := m.retryBase
	if cfg.MaxRetries != nil {
		if *cfg.MaxRetries < 1 {
			return retry.Disabled()
		}
		rcfg.MaxAttempts = *cfg.MaxRetries
	}
	return rcfg
}

// forwardRetryEvents forwards retry engine events to the client's event
// channel tagged with the request ID.
func (m *Model) forwardRetryEvents(retryEvents <-chan retry.Event, requestID string) {
	for re := range retryEvents {
		reCopy := re
		emit(m.events, Event{
			Type:       EventRetry,
			RequestID:  requestID,
			Model:      m.name.String(),
			RetryEvent: &reCopy,
		})
	}
}

// Close releases the backend's resources. It is safe to call concurrently
// and more than once; the backend is closed exactly once and subsequent
// calls return the original result. Generate calls made after Close fail
// with ErrClientClosed.
func (m *Model) Close() error {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		m.closeErr = m.backend.Close()
	})
	return m.closeErr
}
