// Package apperror defines the domain error taxonomy shared by the store,
// the ledger and the report builder. Every error here is recoverable: the
// HTTP layer maps them to 4xx responses (see apierror.FromError).
package apperror

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports rejected payment fields (field name → reason).
type ValidationError struct {
	Fields map[string]string
}

func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

// Add records another rejected field and returns the receiver for chaining.
func (e *ValidationError) Add(field, reason string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = reason
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// ClosedDayError is returned when a mutation targets a closed day.
type ClosedDayError struct {
	Day string
}

func (e *ClosedDayError) Error() string {
	return fmt.Sprintf("day %s is closed", e.Day)
}

// DayOpenError is returned when a report is requested before the day is closed.
type DayOpenError struct {
	Day string
}

func (e *DayOpenError) Error() string {
	return fmt.Sprintf("day %s is still open", e.Day)
}

// NotFoundError is returned for an unknown payment id.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("payment %d not found", e.ID)
}

// InvalidExtensionError is returned for receipt types outside the accepted set.
type InvalidExtensionError struct {
	Ext string
}

func (e *InvalidExtensionError) Error() string {
	return fmt.Sprintf("receipt extension %q is not accepted", e.Ext)
}

// EmptyReportError is returned when a closed day has no payments to export.
type EmptyReportError struct {
	Day string
}

func (e *EmptyReportError) Error() string {
	return fmt.Sprintf("day %s has no payments to report", e.Day)
}
