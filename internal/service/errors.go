package service

import "fmt"

// The error taxonomy of the assessment core. Controllers map each kind to an
// HTTP status; services return them so callers can render the specific
// failure ("attempts exhausted" vs "deadline passed") instead of a generic one.

// ValidationError: the request payload is missing or malformed (empty answers,
// out-of-range score). Nothing was persisted.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// StateError: the operation is invalid for the current lifecycle state, e.g.
// submitting a non-active attempt or grading work that is not submitted.
type StateError struct {
	Message string
}

func (e *StateError) Error() string { return e.Message }

func NewStateError(format string, args ...any) error {
	return &StateError{Message: fmt.Sprintf(format, args...)}
}

// PolicyError: the operation is well-formed but forbidden by attempt/deadline
// policy (attempts exhausted, submission window closed, test not published).
type PolicyError struct {
	Message string
}

func (e *PolicyError) Error() string { return e.Message }

func NewPolicyError(format string, args ...any) error {
	return &PolicyError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError: the referenced attempt, submission, test or task is unknown
// (or not visible to the caller).
type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %v", e.Resource, e.ID)
}

func NewNotFoundError(resource string, id any) error {
	return &NotFoundError{Resource: resource, ID: id}
}
