package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPTransport is the default Transport on net/http, instrumented with otelhttp.
type HTTPTransport struct {
	client  *nethttp.Client
	timeout time.Duration
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport wraps base (nethttp.DefaultTransport when nil). timeout
// bounds each attempt unless the request carries its own.
func NewHTTPTransport(timeout time.Duration, base nethttp.RoundTripper) *HTTPTransport {
	if base == nil {
		base = nethttp.DefaultTransport
	}
	return &HTTPTransport{
		client:  &nethttp.Client{Transport: otelhttp.NewTransport(base)},
		timeout: timeout,
	}
}

// Send performs one HTTP exchange and reads the whole body.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = t.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := nethttp.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, NewNetworkError("failed to create HTTP request", err)
	}
	httpReq.Header = req.Header.Clone()
	if httpReq.Header == nil {
		httpReq.Header = nethttp.Header{}
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		if isTimeoutErr(err) {
			return nil, NewTimeoutError("request timeout", timeout, err)
		}
		return nil, NewNetworkError("request execution failed", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		if isTimeoutErr(err) {
			return nil, NewTimeoutError("response body timeout", timeout, err)
		}
		return nil, NewNetworkError("failed to read response body", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
	}, nil
}

// failureCode derives the symbolic code for an attempt that got no response.
func failureCode(err error) string {
	switch {
	case isCircuitOpen(err):
		return CodeCircuitOpen
	case isTimeoutErr(err):
		return CodeTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return CodeConnRefused
	default:
		return CodeNetwork
	}
}
