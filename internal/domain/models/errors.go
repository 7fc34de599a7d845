package models

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates the requested listing (or image) does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the actor may not mutate the resource.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError carries a client-facing description of bad input.
type ValidationError struct {
	Problems []string
}

// NewValidationError builds a ValidationError from one or more problems.
func NewValidationError(problems ...string) *ValidationError {
	return &ValidationError{Problems: problems}
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
