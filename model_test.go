package modelgate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modelgate/modelgate/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a scriptable in-package test backend.
type fakeBackend struct {
	mu      sync.Mutex
	script  []error // consumed one per call before succeeding
	content string
	latency time.Duration
	calls   int
	closes  int
	lastCfg GenerateConfig

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	started chan struct{} // signaled at the start of each call, if set
	release chan struct{} // blocks each call until signaled, if set
}

func (b *fakeBackend) Generate(ctx context.Context, prompt string, cfg GenerateConfig) (*Response, error) {
	b.mu.Lock()
	b.calls++
	b.lastCfg = cfg
	var fail error
	if len(b.script) > 0 {
		fail = b.script[0]
		b.script = b.script[1:]
	}
	b.mu.Unlock()

	n := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	for {
		peak := b.maxInFlight.Load()
		if n <= peak || b.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	if b.started != nil {
		b.started <- struct{}{}
	}
	if b.release != nil {
		select {
		case <-b.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.latency > 0 {
		select {
		case <-time.After(b.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if fail != nil {
		return nil, fail
	}

	content := b.content
	if content == "" {
		content = "ok"
	}
	return &Response{
		Content:    content,
		StopReason: "stop",
		Usage:      Usage{InputTokens: 3, OutputTokens: 5},
	}, nil
}

func (b *fakeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	return nil
}

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

var testName = Name{Provider: "fake", Model: "test-model"}

// fastRetry keeps retrying tests quick.
func fastRetry() ModelOption {
	return WithRetryPolicy(retry.Config{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	})
}

func TestGenerate(t *testing.T) {
	backend := &fakeBackend{content: "hello"}
	m := NewModel(testName, backend, GenerateConfig{})

	resp, err := m.Generate(context.Background(), "hi")
	require.NoError(t, err)

	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, "fake/test-model", resp.Model)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, 8, resp.Usage.TotalTokens)
	assert.Greater(t, resp.Time, time.Duration(0))
	assert.Equal(t, 1, backend.callCount())
}

func TestGenerateCallSiteOverride(t *testing.T) {
	backend := &fakeBackend{}
	m := NewModel(testName, backend, GenerateConfig{
		Temperature: f64(0.2),
		MaxTokens:   iptr(100),
	})

	_, err := m.Generate(context.Background(), "hi", WithTemperature(0.9))
	require.NoError(t, err)

	// The call-site option wins; unset fields inherit from the client.
	assert.Equal(t, 0.9, *backend.lastCfg.Temperature)
	assert.Equal(t, 100, *backend.lastCfg.MaxTokens)
	// The client's own config is untouched.
	assert.Equal(t, 0.2, *m.Config().Temperature)
}

func TestGenerateFatalNotRetried(t *testing.T) {
	fatal := NewFatalError("invalid api key", 401, nil)
	backend := &fakeBackend{script: []error{fatal, fatal, fatal}}
	m := NewModel(testName, backend, GenerateConfig{}, fastRetry())

	_, err := m.Generate(context.Background(), "hi")

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, backend.callCount())
}

func TestGenerateRateLimitedRetriedToCeiling(t *testing.T) {
	throttled := NewRateLimitedError("too many requests", 429, nil)
	backend := &fakeBackend{script: []error{throttled, throttled, throttled, throttled}}
	m := NewModel(testName, backend, GenerateConfig{MaxRetries: iptr(3)}, fastRetry())

	_, err := m.Generate(context.Background(), "hi")

	assert.Equal(t, 3, backend.callCount())
	var exhausted *retry.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.ErrorIs(t, err, throttled)
}

func TestGenerateRetriesThenSucceeds(t *testing.T) {
	backend := &fakeBackend{script: []error{
		NewTransientError("bad gateway", 502, nil),
		NewRateLimitedError("throttled", 429, nil),
	}}
	m := NewModel(testName, backend, GenerateConfig{}, fastRetry())

	resp, err := m.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, backend.callCount())
}

func TestGenerateConcurrencyCeiling(t *testing.T) {
	const capacity = 2
	const callers = 20

	backend := &fakeBackend{latency: 2 * time.Millisecond}
	m := NewModel(testName, backend, GenerateConfig{MaxConnections: iptr(capacity)})

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Generate(context.Background(), "hi")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, callers, backend.callCount())
	assert.LessOrEqual(t, backend.maxInFlight.Load(), int32(capacity))
}

func TestGenerateThirdCallWaitsForSlot(t *testing.T) {
	backend := &fakeBackend{
		started: make(chan struct{}, 3),
		release: make(chan struct{}),
	}
	m := NewModel(testName, backend, GenerateConfig{MaxConnections: iptr(2)})

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Generate(context.Background(), "hi")
			assert.NoError(t, err)
		}()
	}

	// Exactly two backend invocations begin while both slots are held.
	<-backend.started
	<-backend.started
	select {
	case <-backend.started:
		t.Fatal("third backend call began before a slot was released")
	case <-time.After(50 * time.Millisecond):
	}

	// Finishing one call must admit the third.
	backend.release <- struct{}{}
	select {
	case <-backend.started:
	case <-time.After(time.Second):
		t.Fatal("third backend call did not begin after a slot was released")
	}

	backend.release <- struct{}{}
	backend.release <- struct{}{}
	wg.Wait()
}

func TestGenerateCancelledWhileQueued(t *testing.T) {
	backend := &fakeBackend{
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	m := NewModel(testName, backend, GenerateConfig{MaxConnections: iptr(1)})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := m.Generate(context.Background(), "first")
		assert.NoError(t, err)
	}()
	<-backend.started

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := m.Generate(ctx, "second")
		errCh <- err
	}()

	// Let the second call queue behind the held slot, then cancel it.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("queued Generate did not observe cancellation")
	}

	// The first call still completes and only one backend call happened.
	backend.release <- struct{}{}
	wg.Wait()
	assert.Equal(t, 1, backend.callCount())
	assert.Equal(t, 0, m.InFlight())
}

func TestGenerateSlotReleasedOnError(t *testing.T) {
	fatal := NewFatalError("bad request", 400, nil)
	backend := &fakeBackend{script: []error{fatal}}
	m := NewModel(testName, backend, GenerateConfig{MaxConnections: iptr(1)})

	_, err := m.Generate(context.Background(), "hi")
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 0, m.InFlight())

	// The slot is available for the next call.
	resp, err := m.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}

func TestPerAttemptTimeout(t *testing.T) {
	backend := &fakeBackend{latency: 100 * time.Millisecond}
	m := NewModel(testName, backend, GenerateConfig{
		Timeout:    durptr(5 * time.Millisecond),
		MaxRetries: iptr(2),
	}, fastRetry())

	_, err := m.Generate(context.Background(), "hi")

	// Each attempt got its own deadline and timed out; timeouts are
	// transient, so the ceiling was consumed.
	assert.Equal(t, 2, backend.callCount())
	var exhausted *retry.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClose(t *testing.T) {
	t.Run("generate after close fails fast", func(t *testing.T) {
		backend := &fakeBackend{}
		m := NewModel(testName, backend, GenerateConfig{})
		require.NoError(t, m.Close())

		done := make(chan error, 1)
		go func() {
			_, err := m.Generate(context.Background(), "hi")
			done <- err
		}()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, ErrClientClosed)
		case <-time.After(time.Second):
			t.Fatal("Generate on a closed client hung")
		}
		assert.Equal(t, 0, backend.callCount())
	})

	t.Run("backend closed exactly once", func(t *testing.T) {
		backend := &fakeBackend{}
		m := NewModel(testName, backend, GenerateConfig{})

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, m.Close())
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, backend.closes)
	})
}

func TestGenerateEmitsEvents(t *testing.T) {
	events := make(chan Event, 32)
	backend := &fakeBackend{script: []error{NewTransientError("blip", 503, nil)}}
	m := NewModel(testName, backend, GenerateConfig{}, fastRetry(), WithEventChannel(events))

	_, err := m.Generate(context.Background(), "hi")
	require.NoError(t, err)

	// The forwarding goroutine may still be flushing retry events after
	// Generate returns, so keep draining until both kinds arrived.
	deadline := time.After(time.Second)
	seen := map[EventType]bool{}
	var requestID string
	for !seen[EventRequestComplete] || !seen[EventRetry] {
		select {
		case ev := <-events:
			seen[ev.Type] = true
			if requestID == "" {
				requestID = ev.RequestID
			} else {
				assert.Equal(t, requestID, ev.RequestID)
			}
		case <-deadline:
			t.Fatalf("events missing, saw %v", seen)
		}
	}

	assert.True(t, seen[EventRequestStart])
	assert.NotEmpty(t, requestID)
}

func durptr(d time.Duration) *time.Duration { return &d }
