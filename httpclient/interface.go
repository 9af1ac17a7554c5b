// Package httpclient is the resilient HTTP pipeline every remote call passes
// through: ordered interceptors around a pluggable transport, with retry,
// authentication, throttling and uniform error classification built as
// interceptors.
package httpclient

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/ayska/apiclient/trace"
)

const (
	// HeaderXRequestID is the standard header name for request tracing
	HeaderXRequestID = trace.HeaderXRequestID
	// HeaderAuthorization carries the bearer token
	HeaderAuthorization = "Authorization"
	// HeaderRetryAfter is read from throttling responses
	HeaderRetryAfter = "Retry-After"
	// HeaderContentType is set on requests with a body
	HeaderContentType = "Content-Type"
)

// Client defines the API client. Verb methods resolve relative URLs against the
// configured base URL and return a *Response for 2xx statuses, otherwise the
// error left after all OnError handlers ran.
type Client interface {
	Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error)
	Post(ctx context.Context, url string, body any, opts ...RequestOption) (*Response, error)
	Put(ctx context.Context, url string, body any, opts ...RequestOption) (*Response, error)
	Patch(ctx context.Context, url string, body any, opts ...RequestOption) (*Response, error)
	Delete(ctx context.Context, url string, opts ...RequestOption) (*Response, error)
	Do(ctx context.Context, method, url string, body any, opts ...RequestOption) (*Response, error)

	// Register appends an interceptor. Interceptors run in registration order.
	Register(interceptor Interceptor)
}

// Transport sends one attempt of a request. Non-2xx statuses are returned as a
// Response, not an error; errors mean no response was received.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

// Send calls f(ctx, req).
func (f TransportFunc) Send(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Response represents an HTTP response with tracking information
type Response struct {
	StatusCode int
	Body       []byte
	Headers    nethttp.Header
	Stats      Stats
}

// Stats contains request execution statistics
type Stats struct {
	ElapsedTime time.Duration
	// Attempts is the number of transport calls made for this request.
	Attempts  int
	CallCount int64
}

// Interceptor is a named set of optional pipeline hooks. A nil hook is skipped.
type Interceptor struct {
	Name string

	// OnRequest may mutate the request before every attempt. An error aborts the
	// call without running OnError handlers.
	OnRequest func(ctx context.Context, req *Request) error

	// OnResponse runs after a 2xx response. An error aborts the call.
	OnResponse func(ctx context.Context, req *Request, resp *Response) error

	// OnError receives the current error, starting with a *Failure, and decides
	// what happens next.
	OnError func(ctx context.Context, err error) Outcome
}

type outcomeAction int

const (
	actionNext outcomeAction = iota
	actionRetry
	actionReject
)

// Outcome is the decision of an OnError hook.
type Outcome struct {
	action outcomeAction
	err    error
	delay  time.Duration
}

// Next forwards err to the next handler. A nil err forwards the current error.
func Next(err error) Outcome { return Outcome{action: actionNext, err: err} }

// Retry re-submits the same request after delay, starting again at OnRequest.
func Retry(delay time.Duration) Outcome { return Outcome{action: actionRetry, delay: delay} }

// Reject ends the call with err. A nil err ends it with the current error.
func Reject(err error) Outcome { return Outcome{action: actionReject, err: err} }

// IsRetry reports whether the outcome schedules another attempt.
func (o Outcome) IsRetry() bool { return o.action == actionRetry }

// IsReject reports whether the outcome terminates the call.
func (o Outcome) IsReject() bool { return o.action == actionReject }

// Delay returns the wait before a retry.
func (o Outcome) Delay() time.Duration { return o.delay }

// Err returns the error carried by Next or Reject.
func (o Outcome) Err() error { return o.err }

// Config holds the client configuration
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	DefaultHeaders map[string]string
	// MaxAttempts caps transport calls per request regardless of what
	// interceptors decide.
	MaxAttempts int
	// LogPayloads enables debug-level logging of body sizes and headers.
	LogPayloads bool
}
