// Package mock provides a deterministic in-process backend for tests and
// offline harness runs. It registers itself under the provider name "mock"
// on import; any model name is accepted.
//
// Provider args:
//
//	"output"  string        fixed completion content
//	"latency" time.Duration simulated per-call latency
package mock

import (
	"context"
	"sync"
	"time"

	mg "github.com/modelgate/modelgate"
)

func init() {
	mg.Register("mock", func(ctx context.Context, cfg mg.BackendConfig) (mg.Backend, error) {
		return New(cfg), nil
	})
}

// DefaultOutput is returned when no "output" provider arg is given.
const DefaultOutput = "Default output from mock backend"

// Backend is a scriptable in-process backend.
type Backend struct {
	model   string
	output  string
	latency time.Duration

	mu       sync.Mutex
	failures []error // consumed one per call before succeeding
	calls    int
	closed   bool
}

// New creates a mock backend from provider args.
func New(cfg mg.BackendConfig) *Backend {
	b := &Backend{model: cfg.Model, output: DefaultOutput}
	if v, ok := cfg.Args["output"].(string); ok {
		b.output = v
	}
	if v, ok := cfg.Args["latency"].(time.Duration); ok {
		b.latency = v
	}
	return b
}

// FailWith queues errors to be returned by the next calls, in order, before
// the backend starts succeeding again.
func (b *Backend) FailWith(errs ...error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, errs...)
}

// Calls returns the number of Generate invocations so far.
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// Closed reports whether Close has been called.
func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Generate returns the scripted output after the configured latency.
func (b *Backend) Generate(ctx context.Context, prompt string, cfg mg.GenerateConfig) (*mg.Response, error) {
	b.mu.Lock()
	b.calls++
	var fail error
	if len(b.failures) > 0 {
		fail = b.failures[0]
		b.failures = b.failures[1:]
	}
	b.mu.Unlock()

	if b.latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.latency):
		}
	}

	if fail != nil {
		return nil, fail
	}

	return &mg.Response{
		Content:    b.output,
		StopReason: "stop",
		Usage: mg.Usage{
			InputTokens:  len(prompt) / 4,
			OutputTokens: len(b.output) / 4,
		},
	}, nil
}

// Close marks the backend closed.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
