package domain

import "errors"

// Common domain errors
var (
	// Generation errors
	ErrGenerationUnavailable = errors.New("generation service unavailable")
	ErrGenerationFailed      = errors.New("generation request failed")
	ErrModelNotFound         = errors.New("model not found")

	// Refinement errors
	ErrRunNotFound   = errors.New("refinement run not found")
	ErrRunNotRunning = errors.New("refinement run is not running")

	// Benchmark errors
	ErrSessionNotFound = errors.New("benchmark session not found")
	ErrNoSamples       = errors.New("no samples collected")

	// Validation errors
	ErrInvalidID            = errors.New("invalid ID format")
	ErrEmptyContent         = errors.New("content cannot be empty")
	ErrInvalidState         = errors.New("invalid state transition")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrNotFound             = errors.New("resource not found")
)

// DomainError wraps a domain error with additional context
type DomainError struct {
	Err     error
	Message string
	Code    string
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func NewDomainError(err error, message string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
	}
}

func NewDomainErrorWithCode(err error, message, code string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}
