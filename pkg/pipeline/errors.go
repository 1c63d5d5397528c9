package pipeline

import (
	"errors"
	"fmt"
)

// ErrorCode classifies domain errors.
type ErrorCode string

const (
	ErrCodeNotFound       ErrorCode = "not_found"
	ErrCodeConflict       ErrorCode = "conflict"
	ErrCodeValidation     ErrorCode = "validation"
	ErrCodeTypeMismatch   ErrorCode = "type_mismatch"
	ErrCodeExternalTool   ErrorCode = "external_tool"
	ErrCodeTransfer       ErrorCode = "transfer"
	ErrCodeNotImplemented ErrorCode = "not_implemented"
	ErrCodeUnknownType    ErrorCode = "unknown_type"
	ErrCodeInternal       ErrorCode = "internal"
)

// Error is the unified domain error type. Two Errors compare equal under
// errors.Is when their codes match, so sentinel values below double as
// targets for errors.Is checks.
type Error struct {
	Code    ErrorCode
	Domain  string
	Message string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is by comparing codes.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails attaches a key/value detail and returns the error.
func (e *Error) WithDetails(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error and returns the error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// NewError creates a domain error with the given code and message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Domain:  "pipeline",
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps an existing error with a code and message.
func WrapError(err error, code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Domain:  "pipeline",
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// AsError converts err to *Error when possible.
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Sentinel errors for errors.Is checks. Operations return richer instances
// built with NewError; these carry only the code.
var (
	ErrNotFound       = &Error{Code: ErrCodeNotFound, Message: "not found"}
	ErrConflict       = &Error{Code: ErrCodeConflict, Message: "already exists"}
	ErrValidation     = &Error{Code: ErrCodeValidation, Message: "validation failed"}
	ErrTypeMismatch   = &Error{Code: ErrCodeTypeMismatch, Message: "type mismatch"}
	ErrExternalTool   = &Error{Code: ErrCodeExternalTool, Message: "external tool failed"}
	ErrTransfer       = &Error{Code: ErrCodeTransfer, Message: "transfer failed"}
	ErrNotImplemented = &Error{Code: ErrCodeNotImplemented, Message: "not implemented"}
	ErrUnknownType    = &Error{Code: ErrCodeUnknownType, Message: "unknown type"}
)

func hasCode(err error, code ErrorCode) bool {
	if de, ok := AsError(err); ok {
		return de.Code == code
	}
	return false
}

// IsNotFound reports whether err is a missing pipeline/node error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsConflict reports whether err is a duplicate-id error.
func IsConflict(err error) bool { return hasCode(err, ErrCodeConflict) }

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsTypeMismatch reports whether an executor was invoked against the
// wrong node type.
func IsTypeMismatch(err error) bool { return hasCode(err, ErrCodeTypeMismatch) }

// IsExternalTool reports whether the external media tool exited nonzero.
func IsExternalTool(err error) bool { return hasCode(err, ErrCodeExternalTool) }

// IsTransfer reports whether a remote fetch or upload failed.
func IsTransfer(err error) bool { return hasCode(err, ErrCodeTransfer) }

// IsNotImplemented reports whether a known node type has no executor.
func IsNotImplemented(err error) bool { return hasCode(err, ErrCodeNotImplemented) }

// IsUnknownType reports whether a node type is outside the closed set.
func IsUnknownType(err error) bool { return hasCode(err, ErrCodeUnknownType) }
