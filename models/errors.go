// ABOUTME: Error taxonomy shared by the store, resolver, traversal engine and reconciler
// ABOUTME: Each typed error matches a sentinel through errors.Is for caller-side classification
package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrAmbiguous         = errors.New("ambiguous match")
	ErrConflict          = errors.New("sync conflict")
	ErrTransientProvider = errors.New("transient provider error")
	ErrFatalConfig       = errors.New("fatal config error")
)

// ValidationError names the constraint a write violated.
type ValidationError struct {
	Constraint string `json:"constraint"`
	Field      string `json:"field,omitempty"`
	Message    string `json:"message,omitempty"`
}

func NewValidationError(constraint, field, message string) *ValidationError {
	return &ValidationError{Constraint: constraint, Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: %s (%s): %s", e.Constraint, e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Constraint, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type NotFoundError struct {
	Resource string `json:"resource"`
	ID       string `json:"id,omitempty"`
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AmbiguousMatchError lists the tied candidates the caller must choose between.
type AmbiguousMatchError struct {
	Query      string      `json:"query"`
	Candidates []Candidate `json:"candidates"`
}

func (e *AmbiguousMatchError) Error() string {
	ids := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		ids[i] = c.Person.ID.String()
	}
	return fmt.Sprintf("ambiguous match: %d candidates [%s]", len(e.Candidates), strings.Join(ids, ", "))
}

func (e *AmbiguousMatchError) Is(target error) bool { return target == ErrAmbiguous }

type ConflictError struct {
	ConflictID string `json:"conflict_id"`
	Field      string `json:"field"`
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("sync conflict %s on field %s", e.ConflictID, e.Field)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// TransientProviderError is retryable; the reconciler backs off and tries again later.
type TransientProviderError struct {
	Provider string
	Err      error
}

func (e *TransientProviderError) Error() string {
	return fmt.Sprintf("provider %s transient failure: %v", e.Provider, e.Err)
}

func (e *TransientProviderError) Unwrap() error { return e.Err }

func (e *TransientProviderError) Is(target error) bool { return target == ErrTransientProvider }

// FatalConfigError halts a sync pair until an operator intervenes.
type FatalConfigError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *FatalConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal config error (%s) for %s: %v", e.Reason, e.Provider, e.Err)
	}
	return fmt.Sprintf("fatal config error (%s) for %s", e.Reason, e.Provider)
}

func (e *FatalConfigError) Unwrap() error { return e.Err }

func (e *FatalConfigError) Is(target error) bool { return target == ErrFatalConfig }

// ErrorCode returns a short, value-free code suitable for logs and sync state.
func ErrorCode(err error) string {
	var ve *ValidationError
	var fe *FatalConfigError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return "validation:" + ve.Constraint
	case errors.As(err, &fe):
		return "fatal:" + fe.Reason
	case errors.Is(err, ErrTransientProvider):
		return "transient"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAmbiguous):
		return "ambiguous"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
