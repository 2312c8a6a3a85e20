package errors

import (
	"errors"
	"fmt"
	"time"
)

// RateLimitError is an explicit "slow down" answer (HTTP 429) from a provider.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration // zero when the provider sent no hint
}

func (e *RateLimitError) Error() string {
	msg := fmt.Sprintf("%s rate limit exceeded", e.Provider)
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	return msg
}

// NewRateLimitError creates a RateLimitError. retryAfter may be zero.
func NewRateLimitError(provider string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{Provider: provider, RetryAfter: retryAfter}
}

// IsRateLimitError reports whether err is a RateLimitError, even when wrapped.
func IsRateLimitError(err error) bool {
	var rateErr *RateLimitError
	return errors.As(err, &rateErr)
}

// RetryAfter returns the retry hint of a wrapped RateLimitError, or zero.
func RetryAfter(err error) time.Duration {
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return rateErr.RetryAfter
	}
	return 0
}
