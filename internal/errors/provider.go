package errors

import (
	"errors"
	"fmt"
)

// ServerError is a non-success HTTP status from a provider that is not a rate limit.
type ServerError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s returned HTTP %d: %s", e.Provider, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s returned HTTP %d", e.Provider, e.StatusCode)
}

// Retryable reports whether the status is a server-side (5xx) failure.
func (e *ServerError) Retryable() bool {
	return e.StatusCode >= 500
}

// NewServerError creates a ServerError, truncating the body for logging.
func NewServerError(provider string, statusCode int, body string) *ServerError {
	return &ServerError{Provider: provider, StatusCode: statusCode, Body: Truncate(body, 200)}
}

// IsServerError reports whether err is a 5xx ServerError (even when wrapped).
func IsServerError(err error) bool {
	var srvErr *ServerError
	return errors.As(err, &srvErr) && srvErr.Retryable()
}

// TransientError wraps network failures that may succeed on retry (timeouts, resets).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as transient.
func NewTransientError(err error) *TransientError {
	return &TransientError{Err: err}
}

// IsTransientError reports whether err is a TransientError (even when wrapped).
func IsTransientError(err error) bool {
	var tErr *TransientError
	return errors.As(err, &tErr)
}

// MalformedResponseError is returned when a provider answered but the payload
// could not be parsed into structured data.
type MalformedResponseError struct {
	Provider string
	Payload  string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.Provider, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// NewMalformedResponseError keeps a truncated copy of the offending payload.
func NewMalformedResponseError(provider, payload string, err error) *MalformedResponseError {
	return &MalformedResponseError{Provider: provider, Payload: Truncate(payload, 500), Err: err}
}

// IsMalformedResponseError reports whether err is a MalformedResponseError (even when wrapped).
func IsMalformedResponseError(err error) bool {
	var mErr *MalformedResponseError
	return errors.As(err, &mErr)
}

// ConfigError marks invalid static configuration. These are fatal at construction.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// NewConfigError creates a ConfigError
func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}

// IsConfigError reports whether err is a ConfigError (even when wrapped).
func IsConfigError(err error) bool {
	var cErr *ConfigError
	return errors.As(err, &cErr)
}

// Truncate shortens s to at most n bytes, marking the cut.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
