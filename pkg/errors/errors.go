// Package errors defines the error taxonomy shared across the batching
// pipeline. Errors carry a type tag so callers can decide between aborting
// (configuration and data-integrity problems) and recovering (cache
// mismatches degrade to recomputation).
package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeConfiguration covers mutually exclusive or missing sizing
	// parameters and non-divisible batch/epoch granularity. Fatal, raised
	// before any clustering or batch work starts.
	ErrorTypeConfiguration ErrorType = "CONFIGURATION"

	// ErrorTypeCacheMismatch is recoverable: a cached clustering exists but
	// was produced with different parameters. Callers recompute and may
	// overwrite the cache.
	ErrorTypeCacheMismatch ErrorType = "CACHE_MISMATCH"

	// ErrorTypeDataIntegrity covers adjacency referencing node indices
	// outside the visible set or feature/label row mismatches. Fatal,
	// never silently corrected.
	ErrorTypeDataIntegrity ErrorType = "DATA_INTEGRITY"
)

// PipelineError is an error tagged with a taxonomy type and optional
// diagnostic details (offending node/edge index, conflicting parameters).
type PipelineError struct {
	Type    ErrorType
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// WithDetails attaches diagnostic context to the error.
func (e *PipelineError) WithDetails(details map[string]interface{}) *PipelineError {
	e.Details = details
	return e
}

// WithCause wraps an underlying error
func (e *PipelineError) WithCause(err error) *PipelineError {
	e.Cause = err
	return e
}

// NewConfiguration creates a fatal configuration error.
func NewConfiguration(format string, args ...interface{}) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeConfiguration,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewCacheMismatch creates a recoverable cache mismatch error.
func NewCacheMismatch(format string, args ...interface{}) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeCacheMismatch,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewDataIntegrity creates a fatal data integrity error.
func NewDataIntegrity(format string, args ...interface{}) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeDataIntegrity,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsType reports whether err (or any error it wraps) is a PipelineError of
// the given type.
func IsType(err error, t ErrorType) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Type == t
	}
	return false
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool { return IsType(err, ErrorTypeConfiguration) }

// IsCacheMismatch reports whether err is a recoverable cache mismatch.
func IsCacheMismatch(err error) bool { return IsType(err, ErrorTypeCacheMismatch) }

// IsDataIntegrity reports whether err is a data integrity error.
func IsDataIntegrity(err error) bool { return IsType(err, ErrorTypeDataIntegrity) }
