package database

import (
	"errors"
	"fmt"
)

// DBError is a storage failure tagged with the operation that hit it.
// The API maps it to a 500.
type DBError struct {
	Operation string
	Err       error
}

func (e *DBError) Error() string {
	return fmt.Sprintf("%s: storage error: %v", e.Operation, e.Err)
}

func (e *DBError) Unwrap() error {
	return e.Err
}

// NotFoundError means the requested date, symbol or record does not exist.
// Hint, when set, is the whole message shown to the user.
type NotFoundError struct {
	Resource string
	ID       interface{}
	Hint     string
}

func (e *NotFoundError) Error() string {
	switch {
	case e.Hint != "":
		return e.Hint
	case e.ID != nil:
		return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
	default:
		return fmt.Sprintf("no %s found", e.Resource)
	}
}

// ValidationError rejects caller input. The API maps it to a 400.
type ValidationError struct {
	Field  string
	Reason string
	Value  interface{}
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != nil {
		msg += fmt.Sprintf(" (got %v)", e.Value)
	}
	return msg
}

// WrapDBError tags err with op. NotFoundError and ValidationError are
// returned as they are so the API can still tell them apart.
func WrapDBError(op string, err error) error {
	if err == nil || IsNotFound(err) || IsValidation(err) {
		return err
	}
	return &DBError{Operation: op, Err: err}
}

// NewNotFoundErrorWithID reports a missing resource by its key
func NewNotFoundErrorWithID(resource string, id interface{}) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// NewNotFoundErrorWithHint reports a missing resource with a user-facing message
func NewNotFoundErrorWithHint(resource string, id interface{}, hint string) error {
	return &NotFoundError{Resource: resource, ID: id, Hint: hint}
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func NewValidationErrorWithValue(field, reason string, value interface{}) error {
	return &ValidationError{Field: field, Reason: reason, Value: value}
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
