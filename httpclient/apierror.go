package httpclient

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the taxonomy bucket of a classified error.
type Kind string

const (
	KindNetwork          Kind = "NETWORK_ERROR"
	KindTimeout          Kind = "TIMEOUT_ERROR"
	KindWeakNetwork      Kind = "WEAK_NETWORK"
	KindServerDown       Kind = "SERVER_DOWN"
	KindValidation       Kind = "VALIDATION_ERROR"
	KindAuth             Kind = "AUTH_ERROR"
	KindPermissionDenied Kind = "PERMISSION_DENIED"
	KindRateLimited      Kind = "RATE_LIMITED"
	KindServer           Kind = "SERVER_ERROR"
	KindClient           Kind = "CLIENT_ERROR"
	KindUnknown          Kind = "UNKNOWN_ERROR"
)

// APIError is a classified error, safe to show to a user as-is.
// Code is 0 when no HTTP response was received, otherwise the status.
// Title and Message are never empty.
type APIError struct {
	Code    int
	Kind    Kind
	Title   string
	Message string
	Details string
	// RetryAfter is the server-requested wait on throttling responses.
	RetryAfter time.Duration

	err error
}

func (e *APIError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("%s: %s", e.Title, e.Message)
	}
	return fmt.Sprintf("%s: %s (status: %d)", e.Title, e.Message, e.Code)
}

// Unwrap returns the failure the error was classified from.
func (e *APIError) Unwrap() error { return e.err }

var retryableCodes = map[int]bool{408: true, 429: true, 500: true, 502: true, 503: true, 504: true}

// IsRetryable reports whether retrying may succeed: connection-level failures
// and the transient statuses 408, 429, 500, 502, 503 and 504.
func (e *APIError) IsRetryable() bool {
	return e.Code == 0 || retryableCodes[e.Code]
}

// IsServerDown reports whether the server refused or could not be reached.
func (e *APIError) IsServerDown() bool {
	if e.Kind == KindServerDown {
		return true
	}
	return e.Code == 0 && (strings.Contains(e.Message, "Server is down") ||
		strings.Contains(e.Message, "ECONNREFUSED") ||
		strings.Contains(e.Title, "Server Unavailable"))
}

// IsThrottling reports whether the server asked the client to slow down.
func (e *APIError) IsThrottling() bool {
	return e.Kind == KindRateLimited || e.Code == 429 || strings.Contains(e.Title, "Rate Limited")
}

// IsWeakNetwork reports whether repeated timeouts flagged a poor connection.
func (e *APIError) IsWeakNetwork() bool {
	if e.Kind == KindWeakNetwork {
		return true
	}
	return e.Code == 0 && (strings.Contains(e.Title, "Poor Connection") || strings.Contains(e.Message, "weak"))
}

// FormatForLogging renders err as a single diagnostic line, prefixed with an
// RFC 3339 timestamp and an optional context label.
func FormatForLogging(err error, label string, now time.Time) string {
	ctxStr := ""
	if label != "" {
		ctxStr = " [" + label + "]"
	}
	ts := now.UTC().Format(time.RFC3339Nano)

	if f, ok := AsFailure(err); ok && f.Response != nil {
		return fmt.Sprintf("%s%s API Error: %d - %s", ts, ctxStr, f.Response.StatusCode, string(f.Response.Body))
	}
	msg := "Unknown error"
	if err != nil {
		msg = err.Error()
	}
	return fmt.Sprintf("%s%s Network Error: %s", ts, ctxStr, msg)
}
