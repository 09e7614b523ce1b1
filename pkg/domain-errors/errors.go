// Package domainerrors provides coded errors for domain-level outcomes.
//
// Services return these so transports can map a stable code to a response
// without parsing error strings. Infrastructure facts (record missing,
// revision conflict) use pkg/platform/sentinel instead; services translate
// sentinels into coded errors at their edge.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	CodeInvalidInput       Code = "invalid_input"
	CodeBadRequest         Code = "bad_request"
	CodeUnauthorized       Code = "unauthorized"
	CodeValidation         Code = "validation_failed"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"

	// Archival lifecycle rejections. All are recoverable-by-caller: the
	// engine returns them with document state untouched.
	CodeTransitionNotAllowed Code = "transition_not_allowed"
	CodeApprovalRequired     Code = "approval_required"
	CodePermissionDenied     Code = "permission_denied"
	CodeTerminalState        Code = "terminal_state"
	CodeVersionLocked        Code = "version_locked"
)

// Error is a coded domain error. It wraps an optional cause for errors.Is /
// errors.As chains.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
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

// Is is an alias of HasCode kept for call-site readability.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf returns the outermost code of err, or CodeInternal when err is not
// a coded error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
