package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		sentinel error
		message  string
		field    string
	}{
		{
			name:     "not found names the resource and id",
			err:      NotFound("tag", "abc123"),
			sentinel: ErrNotFound,
			message:  "tag not found with id abc123",
		},
		{
			name:     "validation keeps the offending field",
			err:      ValidationFailed("statement", "statement is required"),
			sentinel: ErrValidation,
			message:  "statement is required",
			field:    "statement",
		},
		{
			name:     "unavailable names the operation",
			err:      Unavailable("delete category"),
			sentinel: ErrUnavailable,
			message:  "journal store is not ready: cannot delete category",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error())
			assert.Equal(t, tt.field, tt.err.Field)
			assert.Same(t, tt.sentinel, tt.err.Unwrap())
			assert.ErrorIs(t, tt.err, tt.sentinel)

			// Layers wrap with context; the sentinel must survive.
			wrapped := fmt.Errorf("service: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)

			var appErr *AppError
			assert.True(t, errors.As(wrapped, &appErr))
			assert.Equal(t, tt.message, appErr.Message)
		})
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	all := []error{ErrNotFound, ErrValidation, ErrUnavailable}
	for _, err := range []*AppError{
		NotFound("permission", "p1"),
		ValidationFailed("name", "name is required"),
		Unavailable("list tags"),
	} {
		matches := 0
		for _, sentinel := range all {
			if errors.Is(err, sentinel) {
				matches++
			}
		}
		assert.Equal(t, 1, matches, "%q should match exactly one sentinel", err.Error())
	}
}
