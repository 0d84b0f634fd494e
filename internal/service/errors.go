package service

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not_found")
	ErrConflict   = errors.New("conflict")
	ErrGateway    = errors.New("gateway_error")
	ErrInternal   = errors.New("internal")
)

// Error is returned by every service operation. Message is safe to show to
// the caller; Err keeps the underlying cause for logs.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind name of err, "internal" for anything untyped.
func KindOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind.Error()
	}
	return ErrInternal.Error()
}

// MessageOf returns the caller-facing message of err.
func MessageOf(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Kind != ErrInternal {
		return se.Message
	}
	return "internal server error"
}

func validationError(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func conflictError(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func gatewayError(message string, err error) *Error {
	return &Error{Kind: ErrGateway, Message: message, Err: err}
}

func internalError(op string, err error) *Error {
	return &Error{Kind: ErrInternal, Message: op, Err: err}
}

// asServiceError keeps typed errors and wraps everything else as internal.
func asServiceError(op string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return internalError(op, err)
}
