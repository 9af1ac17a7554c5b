package httpclient

import (
	"errors"
	"fmt"
	"time"
)

// ClientError represents the low-level failures produced by the client itself,
// before classification.
type ClientError interface {
	error
	Type() ErrorType
}

// ErrorType defines the category of client error
type ErrorType string

const (
	NetworkError     ErrorType = "network"
	TimeoutError     ErrorType = "timeout"
	HTTPError        ErrorType = "http"
	ValidationError  ErrorType = "validation"
	InterceptorError ErrorType = "interceptor"
)

// Symbolic failure codes carried by Failure.Code.
const (
	CodeTimeout     = "TIMEOUT"
	CodeNetwork     = "NETWORK_ERROR"
	CodeConnRefused = "ECONNREFUSED"
	CodeWeakNetwork = "WEAK_NETWORK"
	CodeBadResponse = "ERR_BAD_RESPONSE"
	CodeCircuitOpen = "CIRCUIT_OPEN"
)

type networkError struct {
	message string
	wrapped error
}

func (e *networkError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("network error: %s: %v", e.message, e.wrapped)
	}
	return fmt.Sprintf("network error: %s", e.message)
}

func (e *networkError) Type() ErrorType { return NetworkError }

func (e *networkError) Unwrap() error { return e.wrapped }

type timeoutError struct {
	message string
	timeout time.Duration
	wrapped error
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("timeout error: %s (timeout: %v)", e.message, e.timeout)
}

func (e *timeoutError) Type() ErrorType { return TimeoutError }

func (e *timeoutError) Unwrap() error { return e.wrapped }

type httpError struct {
	message    string
	statusCode int
	body       []byte
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP error: %s (status: %d)", e.message, e.statusCode)
}

func (e *httpError) Type() ErrorType { return HTTPError }

func (e *httpError) StatusCode() int { return e.statusCode }

func (e *httpError) Body() []byte { return e.body }

type validationError struct {
	message string
	field   string
}

func (e *validationError) Error() string {
	if e.field != "" {
		return fmt.Sprintf("validation error: %s (field: %s)", e.message, e.field)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

func (e *validationError) Type() ErrorType { return ValidationError }

type interceptorError struct {
	message string
	wrapped error
	stage   string
}

func (e *interceptorError) Error() string {
	return fmt.Sprintf("interceptor error: %s (stage: %s): %v", e.message, e.stage, e.wrapped)
}

func (e *interceptorError) Type() ErrorType { return InterceptorError }

func (e *interceptorError) Unwrap() error { return e.wrapped }

// NewNetworkError creates a new network error
func NewNetworkError(message string, wrapped error) ClientError {
	return &networkError{message: message, wrapped: wrapped}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, timeout time.Duration, wrapped error) ClientError {
	return &timeoutError{message: message, timeout: timeout, wrapped: wrapped}
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(message string, statusCode int, body []byte) ClientError {
	return &httpError{message: message, statusCode: statusCode, body: body}
}

// NewValidationError creates a new validation error
func NewValidationError(message, field string) ClientError {
	return &validationError{message: message, field: field}
}

// NewInterceptorError creates a new interceptor error
func NewInterceptorError(message, stage string, wrapped error) ClientError {
	return &interceptorError{message: message, wrapped: wrapped, stage: stage}
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	if err == nil {
		return false
	}
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type() == errorType
	}
	return false
}

// IsHTTPStatusError checks if an error is an HTTP error with a specific status code
func IsHTTPStatusError(err error, statusCode int) bool {
	var httpErr *httpError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode() == statusCode
	}
	return false
}

// IsSuccessStatus checks if a status code represents success (2xx)
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// Failure is any unsuccessful attempt: a transport error or a non-2xx response.
// It is what OnError handlers receive first.
type Failure struct {
	// Request is the descriptor that failed. Nil when it could not be recovered.
	Request *Request
	// Response is nil when no response was received.
	Response *Response
	Cause    error
	// Code is a symbolic failure code such as CodeTimeout.
	Code string
	// WeakNetwork is set when repeated timeouts suggest a poor connection.
	WeakNetwork bool
}

func (f *Failure) Error() string {
	switch {
	case f.Response != nil:
		return fmt.Sprintf("request failed with status %d", f.Response.StatusCode)
	case f.Cause != nil && f.Code != "":
		return fmt.Sprintf("%s: %v", f.Code, f.Cause)
	case f.Cause != nil:
		return f.Cause.Error()
	case f.Code != "":
		return f.Code
	default:
		return "request failed"
	}
}

func (f *Failure) Unwrap() error { return f.Cause }

// StatusCode returns the response status, or 0 when no response was received.
func (f *Failure) StatusCode() int {
	if f.Response == nil {
		return 0
	}
	return f.Response.StatusCode
}

// IsTimeout reports whether the failure was caused by a timeout.
func (f *Failure) IsTimeout() bool {
	return f.Response == nil && (f.Code == CodeTimeout || isTimeoutErr(f.Cause))
}

// AsFailure extracts the *Failure from err's chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
