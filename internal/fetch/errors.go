package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrAttemptsExhausted is wrapped into the error returned once every attempt has failed.
var ErrAttemptsExhausted = errors.New("attempts exhausted")

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Label      string
	Status     int
	URL        string
	Snippet    string        // first 200 characters of the response body
	RetryAfter time.Duration // valid only when HasRetryAfter is set
	// HasRetryAfter is true when the response carried a parseable Retry-After header.
	HasRetryAfter bool
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("[%s] Fetch failed %d for %s\n%s", e.Label, e.Status, e.URL, e.Snippet)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return RetryableStatus(e.Status)
}

// RetryableStatus is true for rate limiting, request timeout and transient 5xx.
func RetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err so Retry gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable classifies an attempt error. Status errors follow the status table,
// permanent errors stop the loop, anything else is treated as a network-level
// failure and retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
