// Package errs defines the error taxonomy shared by the scheduling engine.
//
// Every error the engine returns on purpose is an *Error carrying a Code.
// Callers branch with errors.Is against the sentinels below or with CodeOf,
// and map codes to their own transport representation.
package errs

import (
	"errors"
	"fmt"
)

// Code identifies a class of engine error.
type Code string

const (
	// CodeValidation means the caller supplied an out-of-contract value.
	CodeValidation Code = "VALIDATION"
	// CodeNotFound means a card or session does not exist for the student.
	CodeNotFound Code = "NOT_FOUND"
	// CodeInvalidState means the session is already complete.
	CodeInvalidState Code = "INVALID_STATE"
	// CodeInvalidCard means the card is not answerable in the session.
	CodeInvalidCard Code = "INVALID_CARD"
	// CodeConflict means an optimistic version check failed.
	CodeConflict Code = "CONFLICT"
	// CodeUnavailable means the backing store could not be reached.
	CodeUnavailable Code = "STORAGE_UNAVAILABLE"
)

// Sentinels for errors.Is. They match any *Error with the same code.
var (
	ErrValidation   = &Error{Code: CodeValidation, Message: "validation failed"}
	ErrNotFound     = &Error{Code: CodeNotFound, Message: "not found"}
	ErrInvalidState = &Error{Code: CodeInvalidState, Message: "invalid state"}
	ErrInvalidCard  = &Error{Code: CodeInvalidCard, Message: "invalid card"}
	ErrConflict     = &Error{Code: CodeConflict, Message: "conflict"}
	ErrUnavailable  = &Error{Code: CodeUnavailable, Message: "storage unavailable"}
)

// Error is a coded engine error.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Validation creates a validation error.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not-found error for the given kind and id.
func NotFound(kind, id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %q not found", kind, id)}
}

// InvalidState creates an invalid-state error.
func InvalidState(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

// InvalidCard creates an invalid-card error.
func InvalidCard(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidCard, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a conflict error.
func Conflict(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// Unavailable wraps a storage failure.
func Unavailable(msg string, cause error) *Error {
	return &Error{Code: CodeUnavailable, Message: msg, Cause: cause}
}

// Wrap attaches a code and message to an existing error.
func Wrap(cause error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

// CodeOf extracts the code from err, or "" when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// UserMessage returns text suitable for showing to a student.
// Internal details never leak through it.
func UserMessage(err error) string {
	switch CodeOf(err) {
	case "":
		if err == nil {
			return ""
		}
		return "something went wrong"
	case CodeValidation:
		return "that answer could not be accepted"
	case CodeConflict:
		return "please try again"
	case CodeNotFound, CodeInvalidState, CodeInvalidCard:
		return "this session has ended"
	case CodeUnavailable:
		return "the service is temporarily unavailable, please try again"
	default:
		return "something went wrong"
	}
}
