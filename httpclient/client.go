package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ayska/apiclient/httpclient/internal/tracking"
	"github.com/ayska/apiclient/logger"
)

const (
	// DefaultTimeout is the default per-attempt timeout
	DefaultTimeout = 15 * time.Second

	// DefaultMaxAttempts caps transport calls per request
	DefaultMaxAttempts = 10

	tracerName = "github.com/ayska/apiclient/httpclient"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// client implements the Client interface
type client struct {
	transport Transport
	logger    logger.Logger
	config    *Config
	sleep     Sleeper
	tracer    oteltrace.Tracer

	mu           sync.RWMutex
	interceptors []Interceptor
	callCount    int64
}

// NewClient creates a client with default configuration over HTTPTransport.
func NewClient(log logger.Logger) Client {
	return NewBuilder(log).Build()
}

// Builder provides a fluent interface for configuring the client
type Builder struct {
	config       *Config
	logger       logger.Logger
	transport    Transport
	sleep        Sleeper
	interceptors []Interceptor
}

// NewBuilder creates a new client builder
func NewBuilder(log logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{
		config: &Config{
			Timeout:        DefaultTimeout,
			MaxAttempts:    DefaultMaxAttempts,
			DefaultHeaders: make(map[string]string),
		},
		logger: log,
		sleep:  sleepContext,
	}
}

// WithBaseURL sets the URL relative paths resolve against
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithTimeout sets the per-attempt timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithTransport replaces the default HTTPTransport
func (b *Builder) WithTransport(t Transport) *Builder {
	b.transport = t
	return b
}

// WithInterceptor registers an interceptor at build time
func (b *Builder) WithInterceptor(ic Interceptor) *Builder {
	b.interceptors = append(b.interceptors, ic)
	return b
}

// WithSleeper replaces the retry wait, mainly for tests
func (b *Builder) WithSleeper(s Sleeper) *Builder {
	if s != nil {
		b.sleep = s
	}
	return b
}

// WithMaxAttempts sets the hard cap on transport calls per request
func (b *Builder) WithMaxAttempts(n int) *Builder {
	b.config.MaxAttempts = n
	return b
}

// WithLogPayloads enables debug logging of payload metadata
func (b *Builder) WithLogPayloads(enabled bool) *Builder {
	b.config.LogPayloads = enabled
	return b
}

// Build creates the client with the configured options
func (b *Builder) Build() Client {
	transport := b.transport
	if transport == nil {
		transport = NewHTTPTransport(b.config.Timeout, nil)
	}
	if b.config.MaxAttempts <= 0 {
		b.config.MaxAttempts = DefaultMaxAttempts
	}
	return &client{
		transport:    transport,
		logger:       b.logger,
		config:       b.config,
		sleep:        b.sleep,
		tracer:       otel.Tracer(tracerName),
		interceptors: append([]Interceptor(nil), b.interceptors...),
	}
}

// Register appends an interceptor
func (c *client) Register(ic Interceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interceptors = append(c.interceptors, ic)
}

func (c *client) snapshot() []Interceptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Interceptor(nil), c.interceptors...)
}

// Get performs a GET request
func (c *client) Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, nethttp.MethodGet, url, nil, opts...)
}

// Post performs a POST request
func (c *client) Post(ctx context.Context, url string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPost, url, body, opts...)
}

// Put performs a PUT request
func (c *client) Put(ctx context.Context, url string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPut, url, body, opts...)
}

// Patch performs a PATCH request
func (c *client) Patch(ctx context.Context, url string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPatch, url, body, opts...)
}

// Delete performs a DELETE request
func (c *client) Delete(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, nethttp.MethodDelete, url, nil, opts...)
}

// Do runs one logical request through the pipeline.
func (c *client) Do(ctx context.Context, method, rawURL string, body any, opts ...RequestOption) (*Response, error) {
	req, err := c.newRequest(method, rawURL, body, opts)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "HTTP "+method,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", req.URL),
		))
	defer span.End()

	resp, err := c.execute(ctx, req)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	} else if f, ok := AsFailure(err); ok {
		status = f.StatusCode()
	}
	span.SetAttributes(attribute.Int("http.request.resend_count", req.Meta.AttemptCount))
	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}

	errKind := ""
	if err != nil {
		errKind = string(Classify(err).Kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, errKind)
	}
	tracking.RecordRequest(ctx, method, status, req.Meta.AttemptCount+1, time.Since(req.Meta.StartTime), errKind)

	return resp, err
}

func (c *client) execute(ctx context.Context, req *Request) (*Response, error) {
	interceptors := c.snapshot()
	callCount := atomic.AddInt64(&c.callCount, 1)
	attempts := 0

	for {
		if err := runOnRequest(ctx, interceptors, req); err != nil {
			return nil, err
		}

		attempts++
		resp, sendErr := c.transport.Send(ctx, req)
		if sendErr == nil && IsSuccessStatus(resp.StatusCode) {
			resp.Stats = Stats{
				ElapsedTime: time.Since(req.Meta.StartTime),
				Attempts:    attempts,
				CallCount:   callCount,
			}
			if err := runOnResponse(ctx, interceptors, req, resp); err != nil {
				return nil, err
			}
			return resp, nil
		}

		failure := newFailure(req, resp, sendErr)
		if ctx.Err() != nil {
			return nil, failure
		}

		retryAt, delay, err := runOnError(ctx, interceptors, 0, failure, true)
		if retryAt < 0 {
			return nil, err
		}
		if attempts >= c.config.MaxAttempts {
			c.logger.Warn().
				Str("method", req.Method).
				Str("url", req.URL).
				Int("attempts", attempts).
				Msg("Retry requested beyond attempt cap")
			// The hooks after the one that asked to retry still shape the final error.
			_, _, err = runOnError(ctx, interceptors, retryAt+1, err, false)
			return nil, err
		}

		oteltrace.SpanFromContext(ctx).AddEvent("retry", oteltrace.WithAttributes(
			attribute.Int("attempt", req.Meta.AttemptCount),
			attribute.Int64("delay_ms", delay.Milliseconds()),
		))
		if werr := c.sleep(ctx, delay); werr != nil {
			return nil, fmt.Errorf("waiting to retry %s %s: %w", req.Method, req.URL, werr)
		}
	}
}

func newFailure(req *Request, resp *Response, sendErr error) *Failure {
	if sendErr != nil {
		return &Failure{Request: req, Cause: sendErr, Code: failureCode(sendErr)}
	}
	return &Failure{
		Request:  req,
		Response: resp,
		Cause:    NewHTTPError(nethttp.StatusText(resp.StatusCode), resp.StatusCode, resp.Body),
		Code:     CodeBadResponse,
	}
}

func runOnRequest(ctx context.Context, interceptors []Interceptor, req *Request) error {
	for _, ic := range interceptors {
		if ic.OnRequest == nil {
			continue
		}
		if err := ic.OnRequest(ctx, req); err != nil {
			return NewInterceptorError(ic.Name+" failed", "request", err)
		}
	}
	return nil
}

func runOnResponse(ctx context.Context, interceptors []Interceptor, req *Request, resp *Response) error {
	for _, ic := range interceptors {
		if ic.OnResponse == nil {
			continue
		}
		if err := ic.OnResponse(ctx, req, resp); err != nil {
			return NewInterceptorError(ic.Name+" failed", "response", err)
		}
	}
	return nil
}

// runOnError threads err through the OnError hooks from index from until one
// retries or rejects. retryAt is the index of the hook that asked to retry, or
// -1. With allowRetry false a Retry outcome passes the error on like Next.
func runOnError(ctx context.Context, interceptors []Interceptor, from int, err error, allowRetry bool) (retryAt int, delay time.Duration, out error) {
	current := err
	for i := from; i < len(interceptors); i++ {
		ic := interceptors[i]
		if ic.OnError == nil {
			continue
		}
		outcome := ic.OnError(ctx, current)
		if outcome.err != nil {
			current = outcome.err
		}
		switch outcome.action {
		case actionRetry:
			if allowRetry {
				return i, outcome.delay, current
			}
		case actionReject:
			return -1, 0, current
		}
	}
	return -1, 0, current
}

func (c *client) newRequest(method, rawURL string, body any, opts []RequestOption) (*Request, error) {
	if strings.TrimSpace(rawURL) == "" && c.config.BaseURL == "" {
		return nil, NewValidationError("URL cannot be empty", "url")
	}
	full, err := c.resolveURL(rawURL)
	if err != nil {
		return nil, err
	}
	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method:  method,
		URL:     full,
		Header:  make(nethttp.Header),
		Body:    payload,
		Timeout: c.config.Timeout,
		Meta:    Meta{StartTime: time.Now()},
	}
	for key, value := range c.config.DefaultHeaders {
		req.Header.Set(key, value)
	}
	if payload != nil && req.Header.Get(HeaderContentType) == "" {
		req.Header.Set(HeaderContentType, "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	return req, nil
}

func (c *client) resolveURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", NewValidationError(fmt.Sprintf("invalid URL %q", rawURL), "url")
	}
	if u.IsAbs() || c.config.BaseURL == "" {
		if !u.IsAbs() {
			return "", NewValidationError(fmt.Sprintf("relative URL %q without base URL", rawURL), "url")
		}
		return u.String(), nil
	}
	return strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(rawURL, "/"), nil
}

func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		return []byte(v), nil
	case io.Reader:
		b, err := io.ReadAll(v)
		if err != nil {
			return nil, NewValidationError("failed to read request body", "body")
		}
		return b, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, NewValidationError("failed to encode request body: "+err.Error(), "body")
		}
		return b, nil
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
