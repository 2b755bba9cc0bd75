package anthropic

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	mg "github.com/modelgate/modelgate"
)

// wrapError translates an Anthropic SDK error into the categorized
// taxonomy, extracting status codes and Retry-After headers for retry
// handling. Context errors pass through unchanged so cancellation is not
// mistaken for a backend failure.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return mg.NewTransientError("anthropic request failed", 0, err)
		}
		return err
	}

	code := apiErr.StatusCode
	msg := err.Error()

	switch {
	case code == http.StatusTooManyRequests:
		if retryAfter := parseRetryAfter(apiErr.Response); retryAfter > 0 {
			return mg.NewRateLimitedErrorWithRetry(msg, code, retryAfter, err)
		}
		return mg.NewRateLimitedError(msg, code, err)
	case code == http.StatusRequestTimeout || (code >= 500 && code < 600):
		return mg.NewTransientError(msg, code, err)
	default:
		return mg.NewFatalError(msg, code, err)
	}
}

// parseRetryAfter extracts the Retry-After duration from an HTTP response.
// Returns 0 if the header is not present or cannot be parsed.
func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}

	// Seconds form (most common)
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}

	// HTTP-date form (RFC 7231)
	if t, err := http.ParseTime(header); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}

	return 0
}
