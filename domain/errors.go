package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a semantic classification shared by the client, the orchestrator and the local API.
type ErrorCode string

const (
	ErrCodeTransientNetwork ErrorCode = "TRANSIENT_NETWORK"
	ErrCodeRemoteService    ErrorCode = "REMOTE_SERVICE"
	ErrCodeValidation       ErrorCode = "VALIDATION"
	ErrCodeCache            ErrorCode = "CACHE"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeInvalid          ErrorCode = "INVALID"
	ErrCodeConflict         ErrorCode = "CONFLICT"
	ErrCodeInternal         ErrorCode = "INTERNAL"
)

// Error represents a domain-level error. StatusCode is only set for errors
// answered by the remote service.
type Error struct {
	Code       ErrorCode
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// RemoteError classifies a non-2xx answer of the remote service.
func RemoteError(status int, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{Code: ErrCodeRemoteService, StatusCode: status, Message: message}
}

// Validationf builds a validation error for a fetched record.
func Validationf(format string, args ...any) *Error {
	return NewError(ErrCodeValidation, fmt.Sprintf(format, args...))
}

var (
	ErrRefreshInProgress = NewError(ErrCodeConflict, "refresh already in progress")
	ErrNoSnapshot        = NewError(ErrCodeNotFound, "no snapshot committed yet")
	ErrTaskNotFound      = NewError(ErrCodeNotFound, "task not found")
	ErrInvalidPayload    = NewError(ErrCodeInvalid, "invalid payload")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// IsTransient reports whether err is a timeout or connection failure.
func IsTransient(err error) bool {
	return IsDomainError(err, ErrCodeTransientNetwork)
}

// IsNotFound reports a local not-found error or a remote 404.
func IsNotFound(err error) bool {
	var dErr *Error
	if !errors.As(err, &dErr) {
		return false
	}
	return dErr.Code == ErrCodeNotFound || dErr.StatusCode == http.StatusNotFound
}
