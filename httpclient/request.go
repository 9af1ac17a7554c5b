package httpclient

import (
	"net/http"
	"net/url"
	"time"
)

// Request is the per-call descriptor. Interceptors mutate it in place; it is
// reused unchanged across retries apart from Meta and headers.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
	// Timeout overrides the client timeout for each attempt.
	Timeout time.Duration
	// MaxRetries overrides the retry interceptor's limit when > 0.
	MaxRetries int
	Meta       Meta
}

// Meta is the mutable bookkeeping carried across attempts.
type Meta struct {
	AttemptCount int
	IsRetry      bool
	StartTime    time.Time
	RequestID    string
	// SkipAuth leaves the request without credentials.
	SkipAuth bool
}

// RequestOption customises a single call.
type RequestOption func(*Request)

// WithHeader sets a request header, overriding client defaults.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) { r.Header.Set(key, value) }
}

// WithQuery appends query parameters to the URL.
func WithQuery(params url.Values) RequestOption {
	return func(r *Request) {
		if len(params) == 0 {
			return
		}
		u, err := url.Parse(r.URL)
		if err != nil {
			return
		}
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		r.URL = u.String()
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) RequestOption {
	return func(r *Request) { r.Timeout = d }
}

// WithMaxRetries overrides the retry limit for this call.
func WithMaxRetries(n int) RequestOption {
	return func(r *Request) { r.MaxRetries = n }
}

// WithRequestID fixes the X-Request-ID value for all attempts.
func WithRequestID(id string) RequestOption {
	return func(r *Request) { r.Meta.RequestID = id }
}

// WithoutAuth sends the request without credentials and without refreshing.
func WithoutAuth() RequestOption {
	return func(r *Request) { r.Meta.SkipAuth = true }
}

// Clone returns a deep copy safe to hand to another goroutine.
func (r *Request) Clone() *Request {
	c := *r
	c.Header = r.Header.Clone()
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return &c
}
