// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"errors"
	"net/http"

	"caixa/internal/apperror"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation failed", Fields: fields}
}

// FromError maps a domain error to its HTTP status and body. ok is false for
// errors outside the domain taxonomy; those must be logged and answered with
// a generic 500.
func FromError(err error) (status int, body any, ok bool) {
	var (
		verr   *apperror.ValidationError
		closed *apperror.ClosedDayError
		open   *apperror.DayOpenError
		nf     *apperror.NotFoundError
		ext    *apperror.InvalidExtensionError
		empty  *apperror.EmptyReportError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, NewValidation(verr.Fields), true
	case errors.As(err, &ext):
		return http.StatusUnprocessableEntity, NewValidation(map[string]string{"receipt": ext.Error()}), true
	case errors.As(err, &closed):
		return http.StatusConflict, New(closed.Error()), true
	case errors.As(err, &open):
		return http.StatusConflict, New(open.Error()), true
	case errors.As(err, &nf):
		return http.StatusNotFound, New(nf.Error()), true
	case errors.As(err, &empty):
		return http.StatusUnprocessableEntity, New(empty.Error()), true
	}
	return http.StatusInternalServerError, New("internal server error"), false
}
