package common

import (
	"context"
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code      string
	Message   string
	Cause     error
	Transient bool
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Kind is the error taxonomy every adapter failure is mapped onto.
type Kind string

const (
	KindDependencyMissing Kind = "DEPENDENCY_MISSING"
	KindTimeout           Kind = "TIMEOUT"
	KindToolFailed        Kind = "TOOL_FAILED"
	KindInvalidInput      Kind = "INVALID_INPUT"
	KindModelUnavailable  Kind = "MODEL_UNAVAILABLE"
	KindModelError        Kind = "MODEL_ERROR"
	KindInternal          Kind = "INTERNAL"
	KindCanceled          Kind = "CANCELED"
)

// Common application errors
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInternal          = errors.New("internal error")
	ErrValidation        = errors.New("validation failed")
	ErrDependencyMissing = errors.New("dependency missing")
	ErrTimeout           = errors.New("timeout")
	ErrToolFailed        = errors.New("tool failed")
	ErrModelUnavailable  = errors.New("model unavailable")
	ErrModelError        = errors.New("model error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// joinCause keeps the sentinel in the chain while preserving the underlying error.
func joinCause(sentinel, cause error) error {
	if cause == nil || errors.Is(cause, sentinel) {
		if cause == nil {
			return sentinel
		}
		return cause
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

func DependencyMissing(message string, cause error) *AppError {
	return NewAppError(string(KindDependencyMissing), message, joinCause(ErrDependencyMissing, cause))
}

func Timeout(message string, cause error) *AppError {
	return NewAppError(string(KindTimeout), message, joinCause(ErrTimeout, cause))
}

// ToolFailed reports a non-zero exit. transient marks failures worth retrying
// (resource exhaustion, killed by signal) as opposed to malformed input.
func ToolFailed(message string, cause error, transient bool) *AppError {
	e := NewAppError(string(KindToolFailed), message, joinCause(ErrToolFailed, cause))
	e.Transient = transient
	return e
}

func InvalidInput(message string, cause error) *AppError {
	return NewAppError(string(KindInvalidInput), message, joinCause(ErrInvalidInput, cause))
}

func InvalidInputf(format string, args ...any) *AppError {
	return InvalidInput(fmt.Sprintf(format, args...), nil)
}

func ModelUnavailable(message string, cause error) *AppError {
	return NewAppError(string(KindModelUnavailable), message, joinCause(ErrModelUnavailable, cause))
}

func ModelError(message string, cause error) *AppError {
	return NewAppError(string(KindModelError), message, joinCause(ErrModelError, cause))
}

func Internal(message string, cause error) *AppError {
	return NewAppError(string(KindInternal), message, joinCause(ErrInternal, cause))
}

func Internalf(format string, args ...any) *AppError {
	return Internal(fmt.Sprintf(format, args...), nil)
}

// KindOf classifies any error onto the taxonomy. Unknown errors are Internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDependencyMissing):
		return KindDependencyMissing
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrToolFailed):
		return KindToolFailed
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return KindInvalidInput
	case errors.Is(err, ErrModelUnavailable):
		return KindModelUnavailable
	case errors.Is(err, ErrModelError):
		return KindModelError
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindInternal
	}
}

// IsRetryable reports whether the job system should schedule a retry.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindModelUnavailable, KindModelError:
		return true
	case KindToolFailed:
		var ae *AppError
		if errors.As(err, &ae) {
			return ae.Transient
		}
		return false
	default:
		return false
	}
}
