// Package resilience provides the transient-error taxonomy and bounded
// backoff retry used around oracle calls.
package resilience

import (
	"errors"
	"strings"
)

// TransientError wraps an error that is safe to retry, carrying the HTTP
// status code when the transport reported one.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP
// status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsRateLimited reports whether the error is a rate-limit or quota signal
// from the oracle transport. Only these are retried; everything else is
// terminal for the unit.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		switch te.StatusCode {
		case 429, 529:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "overloaded")
}
