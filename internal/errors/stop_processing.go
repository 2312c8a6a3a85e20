package errors

import (
	"errors"
	"fmt"
)

// StopProcessingError is returned when the user stops from the candidate
// chooser. The CLI exits cleanly on it.
type StopProcessingError struct {
	Query  string
	Reason string
}

func (e *StopProcessingError) Error() string {
	if e.Query == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s (while choosing a name for %q)", e.Reason, e.Query)
}

// NewStopProcessingError creates a StopProcessingError for query.
func NewStopProcessingError(query, reason string) *StopProcessingError {
	return &StopProcessingError{Query: query, Reason: reason}
}

// IsStopProcessingError reports whether err is a StopProcessingError, even when wrapped.
func IsStopProcessingError(err error) bool {
	var stopErr *StopProcessingError
	return errors.As(err, &stopErr)
}
