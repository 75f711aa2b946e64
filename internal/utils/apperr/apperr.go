// Package apperr defines typed errors that carry the HTTP status they map to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is an *Error with the same code, so a wrapped
// copy still matches its sentinel with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors.
var (
	ErrInvalidID  = New("INVALID_ID", http.StatusBadRequest, "invalid id")
	ErrNotFound   = New("NOT_FOUND", http.StatusNotFound, "student not found")
	ErrValidation = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrBadRequest = New("BAD_REQUEST", http.StatusBadRequest, "bad request")
	ErrInternal   = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// Validation returns a validation error with the given detail message.
func Validation(err error) *Error {
	return Wrap(err, ErrValidation.Code, ErrValidation.Status, ErrValidation.Message)
}

// InvalidID returns an invalid-id error naming the offending value.
func InvalidID(id string, err error) *Error {
	return Wrap(err, ErrInvalidID.Code, ErrInvalidID.Status, fmt.Sprintf("invalid id %q", id))
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}
