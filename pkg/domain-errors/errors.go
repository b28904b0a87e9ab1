// Package domainerrors provides code-carrying errors for the service layer.
//
// Services return these so transports can map failures to wire responses
// without inspecting error strings. Store layers return pkg/platform/sentinel
// errors instead; services translate at the boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport mapping and policy decisions.
type Code string

const (
	// CodeUnauthorized indicates no valid session.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden indicates a valid session with the wrong role. Responses
	// carrying this code must not reveal whether the target resource exists.
	CodeForbidden Code = "forbidden"
	// CodeNotFound covers both missing targets and role-ineligible targets,
	// deliberately collapsed into one class so callers cannot probe roles.
	CodeNotFound Code = "not_found"
	// CodeValidation indicates rejected input; Fields carries per-field messages.
	CodeValidation Code = "validation"
	// CodeConflict indicates a uniqueness or state conflict.
	CodeConflict Code = "conflict"
	// CodeInsufficientResource indicates a denial on consumption rules
	// (credit balance too low, subscription inactive). No mutation occurred.
	CodeInsufficientResource Code = "insufficient_resource"
	// CodeInvariantViolation indicates a model invariant was broken.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal wraps storage and infrastructure failures. The raw cause is
	// logged server-side and never surfaced to callers verbatim.
	CodeInternal Code = "internal"
)

// Error is a domain error with a stable code and user-facing message.
type Error struct {
	Code    Code
	Message string
	// Fields holds field-name -> message pairs for CodeValidation errors.
	Fields map[string]string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and user-facing message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause. The cause is
// preserved for errors.Is/As chains but should not reach the wire.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// NewValidation creates a CodeValidation error carrying field-level messages.
func NewValidation(fields map[string]string) error {
	return &Error{Code: CodeValidation, Message: "validation failed", Fields: fields}
}

// HasCode reports whether err or any error in its chain carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			break
		}
	}
	return false
}

// CodeOf returns the outermost domain code, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Message returns the outermost user-facing message, or a generic fallback.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// FieldsOf returns the field-level messages of a validation error, or nil.
func FieldsOf(err error) map[string]string {
	var de *Error
	if errors.As(err, &de) {
		return de.Fields
	}
	return nil
}
