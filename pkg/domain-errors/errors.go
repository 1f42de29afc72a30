// Package domainerrors defines the domain error taxonomy. Services return
// these; stores return pkg/platform/sentinel errors which services translate
// here. Import as dErrors.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Code identifies a class of domain failure. Codes are stable strings so they
// can cross the HTTP boundary unchanged.
type Code string

const (
	CodeValidation        Code = "validation"
	CodeNotFound          Code = "not_found"
	CodeUnknownPurpose    Code = "unknown_purpose"
	CodeInvalidTransition Code = "invalid_transition"
	CodeUnauthorized      Code = "unauthorized"
	CodeCancelled         Code = "cancelled"
	CodeConflict          Code = "conflict"
	CodeBadRequest        Code = "bad_request"
	CodeInvalidInput      Code = "invalid_input"
	CodeTimeout           Code = "timeout"
	CodeInternal          Code = "internal"
)

// Error is the single domain error type. Fields is populated only for
// validation errors: one message per violated field.
type Error struct {
	Code    Code
	Message string
	Fields  map[string]string
	wrapped error
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, f := range names {
		parts = append(parts, f+": "+e.Fields[f])
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(parts, "; "))
}

func (e *Error) Unwrap() error { return e.wrapped }

// Is matches another domain error by code and message, letting tests assert
// with errors.Is against a freshly built error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code && e.Message == t.Message
}

// New builds a domain error with the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is/As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, wrapped: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.wrapped
		if err == nil {
			return false
		}
	}
	return false
}

// FieldErrors accumulates per-field validation messages. Zero value is ready
// to use.
type FieldErrors struct {
	fields map[string]string
}

// Add records a violation for a field. The first message per field wins so
// callers can layer checks from most to least specific.
func (f *FieldErrors) Add(field, message string) {
	if f.fields == nil {
		f.fields = make(map[string]string)
	}
	if _, ok := f.fields[field]; !ok {
		f.fields[field] = message
	}
}

// Empty reports whether any violation was recorded.
func (f *FieldErrors) Empty() bool { return len(f.fields) == 0 }

// Err returns a CodeValidation error carrying all recorded fields, or nil
// when nothing was recorded.
func (f *FieldErrors) Err() error {
	if f.Empty() {
		return nil
	}
	return &Error{Code: CodeValidation, Message: "validation failed", Fields: f.fields}
}

// ToHTTPStatus maps a domain code to an HTTP status for the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest, CodeInvalidInput, CodeCancelled:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidTransition:
		return http.StatusConflict
	case CodeUnknownPurpose:
		return http.StatusUnprocessableEntity
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
