package modelgate

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorCategories(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		err := NewRateLimitedError("too many requests", 429, nil)
		assert.True(t, IsRateLimited(err))
		assert.True(t, IsRetryable(err))
		assert.False(t, IsTransient(err))
		assert.False(t, IsFatal(err))
		assert.Equal(t, 429, StatusCodeOf(err))
	})

	t.Run("transient", func(t *testing.T) {
		err := NewTransientError("bad gateway", 502, nil)
		assert.True(t, IsTransient(err))
		assert.True(t, IsRetryable(err))
		assert.False(t, IsRateLimited(err))
	})

	t.Run("fatal", func(t *testing.T) {
		err := NewFatalError("invalid api key", 401, nil)
		assert.True(t, IsFatal(err))
		assert.False(t, IsRetryable(err))
	})

	t.Run("uncategorized counts as fatal", func(t *testing.T) {
		err := errors.New("opaque")
		assert.True(t, IsFatal(err))
		assert.False(t, IsRetryable(err))
		assert.Equal(t, 0, StatusCodeOf(err))
	})
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewTransientError("anthropic request failed", 0, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "anthropic request failed: connection reset", err.Error())

	// Categorization survives further wrapping.
	wrapped := fmt.Errorf("generate: %w", err)
	assert.True(t, IsTransient(wrapped))
}

func TestRetryAfterOf(t *testing.T) {
	err := NewRateLimitedErrorWithRetry("throttled", 429, 30*time.Second, nil)
	assert.Equal(t, 30*time.Second, RetryAfterOf(err))

	assert.Equal(t, time.Duration(0), RetryAfterOf(errors.New("no hint")))
}

func TestBuildError(t *testing.T) {
	cause := errors.New("no API key configured for anthropic")
	err := &BuildError{
		Model: Name{Provider: "anthropic", Model: "claude-sonnet-4-5"},
		Err:   cause,
	}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "anthropic/claude-sonnet-4-5")
}
