// Package apperr provides the typed errors shared by the domain, application and HTTP layers.
package apperr

import (
	"errors"
	"fmt"
)

// Error is the structured error returned by domain and use-case code.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Field   string // set for validation errors
	Rule    string // set for validation errors
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates an error of the given kind and code.
func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation reports malformed input for a named field.
func Validation(field, rule, message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeValidation,
		Message: message,
		Field:   field,
		Rule:    rule,
	}
}

// NotFound reports a missing entity.
func NotFound(code Code, message string) *Error {
	return New(KindNotFound, code, message)
}

// Conflict reports a business-rule violation.
func Conflict(code Code, message string) *Error {
	return New(KindBusinessRule, code, message)
}

// Unauthenticated reports a request without a usable identity.
func Unauthenticated(message string) *Error {
	return New(KindUnauthenticated, CodeUnauthenticated, message)
}

// Internal wraps an unexpected failure.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: message, Cause: cause}
}

// As extracts the *Error from err. Errors that are not typed are reported as internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal error", err)
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// KindOf returns the kind of err, KindInternal for untyped errors.
func KindOf(err error) Kind {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return KindInternal
	}
	return appErr.Kind
}
