// Package common defines the failure taxonomy shared by the pipeline,
// repositories and transport layers. Callers should use errors.Is to match
// these values, or KindOf to classify an arbitrary error.
package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// Pipeline errors.
	ErrorValidation = errors.New("validation failed")
	ErrorCanceled   = errors.New("canceled")

	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")

	// Collaborator errors (store, notifications, token service, object storage).
	ErrorDependencyUnavailable = errors.New("dependency unavailable")
)

// Kind is the classification every failure leaving the core resolves to.
type Kind string

const (
	KindValidation            Kind = "validation_failed"
	KindNotFound              Kind = "not_found"
	KindConflict              Kind = "conflict"
	KindDependencyUnavailable Kind = "dependency_unavailable"
	KindCanceled              Kind = "canceled"
)

// KindOf classifies err. Errors that match none of the sentinels are treated
// as DependencyUnavailable so that callers always receive a known kind.
// KindOf(nil) returns the empty Kind.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrorValidation):
		return KindValidation
	case errors.Is(err, ErrorCanceled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, ErrorNotFound):
		return KindNotFound
	case errors.Is(err, ErrorConflict):
		return KindConflict
	default:
		return KindDependencyUnavailable
	}
}

// FieldFailure is a single field-level validation message.
type FieldFailure struct {
	Field   string
	Message string
}

// ValidationError carries the complete, ordered list of field failures
// produced for one command.
type ValidationError struct {
	Failures []FieldFailure
}

// NewValidationError copies failures into a new ValidationError.
func NewValidationError(failures ...FieldFailure) *ValidationError {
	return &ValidationError{Failures: append([]FieldFailure(nil), failures...)}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return fmt.Sprintf("%s: %s", ErrorValidation.Error(), strings.Join(parts, "; "))
}

// Is reports ErrorValidation as the sentinel of every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrorValidation
}

// Unavailable wraps err as a DependencyUnavailable failure. Context errors
// are wrapped as ErrorCanceled instead and stay matchable with errors.Is.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, ErrorCanceled, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrorDependencyUnavailable, err)
}
