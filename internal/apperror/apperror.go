// Package apperror defines the error vocabulary shared by the store, the
// service layer and the HTTP handlers.
//
// Every constructor returns an *AppError that wraps one of the sentinels
// below, so callers can branch with errors.Is without caring which layer
// produced the error.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("Validation Error")
	ErrUnavailable = errors.New("store unavailable")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Unavailable reports that the journal store did not open (or was never
// initialized). The operation was not attempted.
// HTTP handlers map this to 503 Service Unavailable.
func Unavailable(operation string) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: fmt.Sprintf("journal store is not ready: cannot %s", operation),
	}
}
