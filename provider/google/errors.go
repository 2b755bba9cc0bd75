package google

import (
	"context"
	"errors"
	"net"
	"net/http"

	mg "github.com/modelgate/modelgate"
	"google.golang.org/genai"
)

// wrapError translates a GenAI SDK error into the categorized taxonomy.
// Note: genai.APIError does not expose headers, so no Retry-After hint is
// available for this provider.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return mg.NewTransientError("google request failed", 0, err)
		}
		return err
	}

	code := apiErr.Code
	msg := err.Error()

	switch {
	case code == http.StatusTooManyRequests:
		return mg.NewRateLimitedError(msg, code, err)
	case code == http.StatusRequestTimeout || (code >= 500 && code < 600):
		return mg.NewTransientError(msg, code, err)
	default:
		return mg.NewFatalError(msg, code, err)
	}
}
