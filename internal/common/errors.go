// Package common holds the error taxonomy and logging setup shared by every component.
package common

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad user input. The conversation re-prompts and keeps its state.
	ErrValidation = errors.New("invalid input")
	// ErrPersistence marks a store that is unreachable or a violated constraint.
	ErrPersistence = errors.New("persistence failure")
	// ErrUpstreamUnavailable marks a failed or timed out call to a third-party service.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrNotFound is returned by lookups that found nothing.
	ErrNotFound = errors.New("not found")
)

// ValidationError describes rejected user input.
type ValidationError struct {
	Field  string
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Input, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, input, reason string) error {
	return &ValidationError{Field: field, Input: input, Reason: reason}
}

// PersistenceError wraps any failure of the ledger store.
type PersistenceError struct {
	Op       string
	Identity int64
	Err      error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (user %d): %v", e.Op, e.Identity, ErrPersistence)
	}
	return fmt.Sprintf("%s (user %d): %v", e.Op, e.Identity, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// NewPersistenceError wraps err as a PersistenceError. A nil err stays nil.
func NewPersistenceError(op string, identity int64, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Identity: identity, Err: err}
}

// UpstreamError wraps a failure of an external service.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// NewUpstreamError creates an UpstreamError.
func NewUpstreamError(service string, err error) error {
	return &UpstreamError{Service: service, Err: err}
}
