package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// Engine error codes
const (
	ErrCapacityExceeded     ErrorCode = "CAPACITY_EXCEEDED"
	ErrStreamNotFound       ErrorCode = "STREAM_NOT_FOUND"
	ErrInvalidTransition    ErrorCode = "INVALID_TRANSITION"
	ErrBackpressureRejected ErrorCode = "BACKPRESSURE_REJECTED"
	ErrFormatterFailure     ErrorCode = "FORMATTER_FAILURE"
	ErrTimeout              ErrorCode = "TIMEOUT"
	ErrStreamCancelled      ErrorCode = "STREAM_CANCELLED"
	ErrEngineClosed         ErrorCode = "ENGINE_CLOSED"
)

// Transport error codes
const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrForbidden          ErrorCode = "FORBIDDEN"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
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

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// WrapError wraps an existing error with a code and message.
func WrapError(err error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Cause: err}
}

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsErrorCode checks whether err carries the given code anywhere in its chain.
func IsErrorCode(err error, code ErrorCode) bool {
	if e, ok := AsError(err); ok {
		return e.Code == code
	}
	return false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// NewCapacityError signals that the engine is at its concurrent-stream limit.
func NewCapacityError(limit int) *Error {
	return &Error{
		Code:       ErrCapacityExceeded,
		Message:    fmt.Sprintf("concurrent stream limit reached (%d)", limit),
		HTTPStatus: 503,
		Retryable:  true,
	}
}

// NewStreamNotFoundError signals that no stream with the given ID is registered.
func NewStreamNotFoundError(streamID string) *Error {
	return &Error{
		Code:       ErrStreamNotFound,
		Message:    fmt.Sprintf("stream %q not found", streamID),
		HTTPStatus: 404,
	}
}

// NewInvalidTransitionError signals a chunk arriving in a state that cannot accept it.
func NewInvalidTransitionError(streamID string, state StreamState) *Error {
	return &Error{
		Code:       ErrInvalidTransition,
		Message:    fmt.Sprintf("stream %q cannot accept chunks in state %s", streamID, state),
		HTTPStatus: 409,
	}
}

// NewBackpressureError signals a chunk shed because the stream's queue is full.
// Backpressure rejections are retryable once the queue drains.
func NewBackpressureError(streamID string) *Error {
	return &Error{
		Code:       ErrBackpressureRejected,
		Message:    fmt.Sprintf("stream %q queue is full, chunk rejected", streamID),
		HTTPStatus: 429,
		Retryable:  true,
	}
}

// NewFormatterError wraps a formatter failure.
func NewFormatterError(formatter string, cause error) *Error {
	return &Error{
		Code:       ErrFormatterFailure,
		Message:    fmt.Sprintf("formatter %q failed", formatter),
		HTTPStatus: 500,
		Cause:      cause,
	}
}

// NewTimeoutError signals a stream or chunk exceeding its deadline.
func NewTimeoutError(what string, timeout time.Duration) *Error {
	return &Error{
		Code:       ErrTimeout,
		Message:    fmt.Sprintf("%s exceeded %s", what, timeout),
		HTTPStatus: 504,
		Retryable:  true,
	}
}

// NewInvalidRequestError signals malformed caller input.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Code:       ErrInvalidRequest,
		Message:    message,
		HTTPStatus: 400,
	}
}

// NewInternalError wraps an unexpected internal failure.
func NewInternalError(message string, cause error) *Error {
	return &Error{
		Code:       ErrInternalError,
		Message:    message,
		HTTPStatus: 500,
		Cause:      cause,
	}
}
