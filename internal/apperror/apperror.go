// Package apperror defines the error kinds shared by the assignment core and
// the HTTP layer that translates them into status codes.
package apperror

import (
	"errors"
	"fmt"
)

// Kind sentinels. Match with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidState       = errors.New("invalid state")
	ErrBadRequest         = errors.New("bad request")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Error carries a kind, a caller facing message and an optional cause.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func newError(kind error, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// NotFound reports an absent entity.
func NotFound(format string, args ...interface{}) error {
	return newError(ErrNotFound, nil, format, args...)
}

// Forbidden reports a caller lacking ownership or role.
func Forbidden(format string, args ...interface{}) error {
	return newError(ErrForbidden, nil, format, args...)
}

// InvalidState reports a violated lifecycle or admission precondition.
func InvalidState(format string, args ...interface{}) error {
	return newError(ErrInvalidState, nil, format, args...)
}

// BadRequest reports malformed input or a data integrity fault.
func BadRequest(format string, args ...interface{}) error {
	return newError(ErrBadRequest, nil, format, args...)
}

// Unavailable reports that a correctness critical remote dependency could not answer.
func Unavailable(cause error, format string, args ...interface{}) error {
	return newError(ErrServiceUnavailable, cause, format, args...)
}

// Message returns the caller facing message of err when it is an *Error.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
