package livechat

import (
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error type.
type ErrorCode int

const (
	// Protocol Errors (from server error frames)
	ErrorUnknown ErrorCode = iota
	ErrorUnauthorized
	ErrorInvalidMessage
	ErrorBadRequest
	ErrorRoomNotFound
	ErrorNotInRoom
	ErrorAccessDenied
	ErrorRateLimited
	ErrorInternalServer

	// Client-side Errors
	ErrorConnection
	ErrorDisconnected
	ErrorTimeout
	ErrorInvalidConfig
	ErrorNotConnected
	ErrorSerialization
	ErrorReconnectExhausted
	ErrorUploadFailed
)

// String returns the string representation of an ErrorCode.
func (e ErrorCode) String() string {
	switch e {
	case ErrorUnknown:
		return "unknown"
	case ErrorUnauthorized:
		return "unauthorized"
	case ErrorInvalidMessage:
		return "invalid_message"
	case ErrorBadRequest:
		return "bad_request"
	case ErrorRoomNotFound:
		return "room_not_found"
	case ErrorNotInRoom:
		return "not_in_room"
	case ErrorAccessDenied:
		return "access_denied"
	case ErrorRateLimited:
		return "rate_limited"
	case ErrorInternalServer:
		return "internal_error"
	case ErrorConnection:
		return "connection_error"
	case ErrorDisconnected:
		return "disconnected"
	case ErrorTimeout:
		return "timeout"
	case ErrorInvalidConfig:
		return "invalid_config"
	case ErrorNotConnected:
		return "not_connected"
	case ErrorSerialization:
		return "serialization_error"
	case ErrorReconnectExhausted:
		return "reconnect_exhausted"
	case ErrorUploadFailed:
		return "upload_failed"
	default:
		return fmt.Sprintf("unknown_code_%d", e)
	}
}

// ParseErrorCode converts a protocol error code string to ErrorCode.
func ParseErrorCode(code string) ErrorCode {
	switch code {
	case "unauthorized":
		return ErrorUnauthorized
	case "invalid_message":
		return ErrorInvalidMessage
	case "bad_request":
		return ErrorBadRequest
	case "room_not_found":
		return ErrorRoomNotFound
	case "not_in_room":
		return ErrorNotInRoom
	case "access_denied":
		return ErrorAccessDenied
	case "rate_limited":
		return ErrorRateLimited
	case "internal_error":
		return ErrorInternalServer
	default:
		return ErrorUnknown
	}
}

// LivechatError is a structured error with code and context.
type LivechatError struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *LivechatError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s (wrapped: %v)", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Unwrap support.
func (e *LivechatError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is a *LivechatError with the same code.
func (e *LivechatError) Is(target error) bool {
	t, ok := target.(*LivechatError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel values for errors.Is comparisons.
var (
	ErrNotConnected       = NewError(ErrorNotConnected, "not connected")
	ErrDisconnected       = NewError(ErrorDisconnected, "connection lost")
	ErrReconnectExhausted = NewError(ErrorReconnectExhausted, "reconnect attempts exhausted")
	ErrInvalidConfig      = NewError(ErrorInvalidConfig, "invalid configuration")
)

// NewError creates a new LivechatError with the given code and message.
func NewError(code ErrorCode, message string) *LivechatError {
	return &LivechatError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with a LivechatError.
func WrapError(code ErrorCode, message string, err error) *LivechatError {
	return &LivechatError{
		Code:    code,
		Message: message,
		Wrapped: err,
	}
}

// FromProtocolError converts a protocol Error to LivechatError.
func FromProtocolError(e *Error) *LivechatError {
	if e == nil {
		return nil
	}
	return &LivechatError{
		Code:    ParseErrorCode(e.Code),
		Message: e.Msg,
	}
}

// IsProtocolError checks if an error is a protocol error (from server).
func IsProtocolError(err error) bool {
	var le *LivechatError
	if !errors.As(err, &le) {
		return false
	}
	return le.Code >= ErrorUnauthorized && le.Code <= ErrorInternalServer
}

// IsConnectionError checks if an error is a connection-related error.
func IsConnectionError(err error) bool {
	var le *LivechatError
	if !errors.As(err, &le) {
		return false
	}
	switch le.Code {
	case ErrorConnection, ErrorDisconnected, ErrorTimeout, ErrorReconnectExhausted:
		return true
	default:
		return false
	}
}
