package provider

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// maxRetries bounds the exponential backoff retry loop shared by every
// adapter (spec.md §4.5 "small bounded count").
const maxRetries = 3

// retryableStatus reports whether an HTTP status code should be retried
// with backoff (429 and any 5xx).
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// withRetry runs call up to maxRetries+1 times, backing off exponentially
// between attempts when shouldRetry(err) reports true. A network-level
// error (networkErr reporting true) is retried only once, matching
// spec.md §4.5 "network errors retry once".
func withRetry(ctx context.Context, shouldRetry func(error) bool, networkErr func(error) bool, call func() error) error {
	var lastErr error
	attempt := 0
	for {
		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}

		retry := shouldRetry(lastErr)
		limit := maxRetries
		if networkErr(lastErr) {
			retry = true
			limit = 1
		}
		if !retry || attempt >= limit {
			return lastErr
		}

		wait := time.Duration(1<<uint(attempt)) * 250 * time.Millisecond
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		attempt++
	}
}

// statusError carries an HTTP response's status code alongside the
// provider's error body, so withRetry's shouldRetry predicate can inspect
// it without re-parsing.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return http.StatusText(e.Code) + ": " + e.Body
}

func isRetryableHTTPError(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return retryableStatus(se.Code)
	}
	return false
}

func isNetworkError(err error) bool {
	var se *statusError
	return !errors.As(err, &se)
}
