package modelgate

import (
	"errors"
	"fmt"
	"time"
)

// ErrClientClosed is returned by [Model.Generate] after the client has been
// closed.
var ErrClientClosed = errors.New("model client is closed")

// ErrRegistryClosed is returned by [Registry.Get] after the registry has
// been torn down.
var ErrRegistryClosed = errors.New("registry is closed")

// ErrorCategory classifies backend errors by how the retry engine should
// handle them.
type ErrorCategory string

const (
	// ErrorRateLimited indicates the provider signaled throttling.
	// Retried with exponential backoff, honoring any server-supplied
	// retry-after hint.
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorTransient indicates a temporary failure such as a network
	// error, timeout, or 5xx-class server error. Retried with
	// exponential backoff.
	ErrorTransient ErrorCategory = "transient"

	// ErrorFatal indicates the error is not recoverable through retry.
	// Examples: invalid request, authentication failure, content policy
	// rejection.
	ErrorFatal ErrorCategory = "fatal"
)

// CategorizedError is an error that provides information about how it
// should be handled. Backend implementations must raise categorized errors
// so the retry engine can act on them.
type CategorizedError interface {
	error
	Category() ErrorCategory
	Retryable() bool           // true for rate_limited and transient
	StatusCode() int           // HTTP status code if applicable, 0 otherwise
	RetryAfter() time.Duration // server-suggested retry delay, 0 if none
}

// Error is a categorized error with metadata for retry decisions.
type Error struct {
	Msg        string
	Cat        ErrorCategory
	Code       int           // HTTP status code, 0 if not applicable
	RetryDelay time.Duration // from Retry-After header, 0 if not available
	Cause      error         // underlying error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Category returns the error category.
func (e *Error) Category() ErrorCategory {
	return e.Cat
}

// Retryable returns true if the error is rate-limited or transient.
func (e *Error) Retryable() bool {
	return e.Cat == ErrorRateLimited || e.Cat == ErrorTransient
}

// StatusCode returns the HTTP status code, or 0 if not applicable.
func (e *Error) StatusCode() int {
	return e.Code
}

// RetryAfter returns the server-suggested retry delay, or 0 if not available.
func (e *Error) RetryAfter() time.Duration {
	return e.RetryDelay
}

// NewRateLimitedError creates an error indicating provider throttling.
func NewRateLimitedError(msg string, statusCode int, cause error) *Error {
	return &Error{
		Msg:   msg,
		Cat:   ErrorRateLimited,
		Code:  statusCode,
		Cause: cause,
	}
}

// NewRateLimitedErrorWithRetry creates a throttling error carrying the
// server's suggested retry delay.
func NewRateLimitedErrorWithRetry(msg string, statusCode int, retryAfter time.Duration, cause error) *Error {
	return &Error{
		Msg:        msg,
		Cat:        ErrorRateLimited,
		Code:       statusCode,
		RetryDelay: retryAfter,
		Cause:      cause,
	}
}

// NewTransientError creates a transient error that can be retried.
func NewTransientError(msg string, statusCode int, cause error) *Error {
	return &Error{
		Msg:   msg,
		Cat:   ErrorTransient,
		Code:  statusCode,
		Cause: cause,
	}
}

// NewFatalError creates an error that should never be retried.
func NewFatalError(msg string, statusCode int, cause error) *Error {
	return &Error{
		Msg:   msg,
		Cat:   ErrorFatal,
		Code:  statusCode,
		Cause: cause,
	}
}

// IsRateLimited returns true if the error is categorized as rate-limited.
func IsRateLimited(err error) bool {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.Category() == ErrorRateLimited
	}
	return false
}

// IsTransient returns true if the error is categorized as transient.
func IsTransient(err error) bool {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.Category() == ErrorTransient
	}
	return false
}

// IsFatal returns true if the error is categorized as fatal.
// Uncategorized errors count as fatal: a backend raising an opaque error
// gets no retries.
func IsFatal(err error) bool {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.Category() == ErrorFatal
	}
	return true
}

// IsRetryable returns true if the error is rate-limited or transient.
func IsRetryable(err error) bool {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.Retryable()
	}
	return false
}

// StatusCodeOf returns the HTTP status code from a categorized error, or 0.
func StatusCodeOf(err error) int {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.StatusCode()
	}
	return 0
}

// RetryAfterOf returns the retry delay from a categorized error, or 0.
func RetryAfterOf(err error) time.Duration {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.RetryAfter()
	}
	return 0
}

// BuildError reports a backend construction failure, e.g. missing
// credentials or an unknown provider. Build failures are surfaced
// immediately and never retried.
type BuildError struct {
	Model Name
	Err   error
}

// Error returns a formatted message naming the model that failed to build.
func (e *BuildError) Error() string {
	return fmt.Sprintf("building client for %s: %v", e.Model, e.Err)
}

// Unwrap returns the underlying error.
func (e *BuildError) Unwrap() error {
	return e.Err
}
