// Package response provides helpers for writing consistent JSON HTTP responses.
//
// Every handler in this application sends JSON back to the client.
// Rather than repeating the same three lines (set header, set status,
// encode JSON) in every handler, they live here.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/scholarship-api/internal/utils/apperr"
)

// ─────────────────────────────────────────────────────────────────────────────
// Response is the standard envelope returned for error cases.
//
// Success responses may return any JSON shape (a student, a list, a
// message envelope…). Error responses always look like:
//
//	{ "status": "error", "code": "VALIDATION_ERROR", "error": "field name is required" }
//
// ─────────────────────────────────────────────────────────────────────────────
type Response struct {
	Status string `json:"status"`         // "ok" or "error"
	Code   string `json:"code,omitempty"` // machine-readable apperr code
	Error  string `json:"error"`          // human-readable error detail
}

// Status string constants.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ─────────────────────────────────────────────────────────────────────────────
// WriteJSON writes a JSON-encoded response with the given HTTP status code.
//
// IMPORTANT ORDER: Header() → WriteHeader() → body writes.
// Once WriteHeader is called (or the first Write), headers are locked.
// ─────────────────────────────────────────────────────────────────────────────
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// GeneralError wraps any Go error into the standard Response shape.
// Typed apperr errors contribute their code; validator errors are
// rendered field by field.
func GeneralError(err error) Response {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return ValidationError(verrs)
	}

	var e *apperr.Error
	if errors.As(err, &e) {
		return Response{Status: StatusError, Code: e.Code, Error: err.Error()}
	}

	return Response{
		Status: StatusError,
		Error:  err.Error(),
	}
}

// WriteError writes err as an error envelope, using the status carried by
// the error (500 for untyped errors).
func WriteError(w http.ResponseWriter, err error) error {
	return WriteJSON(w, apperr.FromError(err).Status, GeneralError(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// ValidationError converts a slice of validator.FieldError values into
// a single human-readable Response.
//
// Example output:
//
//	{ "status": "error", "code": "VALIDATION_ERROR",
//	  "error": "field name is required, field age must be at least 0" }
//
// ─────────────────────────────────────────────────────────────────────────────
func ValidationError(errs validator.ValidationErrors) Response {
	var errMessages []string

	for _, e := range errs {
		field := e.Field()
		switch e.ActualTag() {
		case "required":
			errMessages = append(errMessages,
				fmt.Sprintf("field %s is required", field))
		case "gte", "min":
			errMessages = append(errMessages,
				fmt.Sprintf("field %s must be at least %s", field, e.Param()))
		case "lte", "max":
			errMessages = append(errMessages,
				fmt.Sprintf("field %s must be at most %s", field, e.Param()))
		default:
			errMessages = append(errMessages,
				fmt.Sprintf("field %s is invalid", field))
		}
	}

	return Response{
		Status: StatusError,
		Code:   apperr.ErrValidation.Code,
		Error:  strings.Join(errMessages, ", "),
	}
}
