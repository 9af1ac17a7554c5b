package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayska/apiclient/logger"
)

const testPath = "/widgets"

func TestDoSuccessRunsHooksInOrder(t *testing.T) {
	tr := newScripted(okStep(`{"ok":true}`))
	var order []string
	record := func(name string) Interceptor {
		return Interceptor{
			Name: name,
			OnRequest: func(_ context.Context, _ *Request) error {
				order = append(order, name+".request")
				return nil
			},
			OnResponse: func(_ context.Context, _ *Request, _ *Response) error {
				order = append(order, name+".response")
				return nil
			},
		}
	}
	c := newTestBuilder(tr, &recordingSleeper{}).
		WithInterceptor(record("a")).
		WithInterceptor(record("b")).
		Build()

	resp, err := c.Get(context.Background(), testPath)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, resp.Stats.Attempts)
	assert.Equal(t, []string{"a.request", "b.request", "a.response", "b.response"}, order)
	assert.Equal(t, "https://api.example.com/widgets", tr.Requests()[0].URL)
}

func TestOnRequestErrorAbortsWithoutOnError(t *testing.T) {
	tr := newScripted(okStep(""))
	onErrorCalled := false
	boom := errors.New("boom")
	c := newTestBuilder(tr, &recordingSleeper{}).
		WithInterceptor(Interceptor{
			Name:      "guard",
			OnRequest: func(context.Context, *Request) error { return boom },
			OnError: func(context.Context, error) Outcome {
				onErrorCalled = true
				return Next(nil)
			},
		}).
		Build()

	_, err := c.Get(context.Background(), testPath)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, IsErrorType(err, InterceptorError))
	assert.False(t, onErrorCalled)
	assert.Equal(t, 0, tr.Calls())
}

func TestOnResponseErrorAbortsCall(t *testing.T) {
	tr := newScripted(okStep(""))
	c := newTestBuilder(tr, &recordingSleeper{}).
		WithInterceptor(Interceptor{
			Name: "inspect",
			OnResponse: func(context.Context, *Request, *Response) error {
				return errors.New("unexpected payload")
			},
		}).
		Build()

	resp, err := c.Get(context.Background(), testPath)

	assert.Nil(t, resp)
	assert.True(t, IsErrorType(err, InterceptorError))
}

func TestNon2xxBecomesFailure(t *testing.T) {
	tr := newScripted(statusStep(http.StatusNotFound, `{"detail":"missing"}`))
	c := newTestBuilder(tr, &recordingSleeper{}).Build()

	_, err := c.Get(context.Background(), testPath)

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, f.StatusCode())
	assert.Equal(t, CodeBadResponse, f.Code)
	assert.True(t, IsHTTPStatusError(err, http.StatusNotFound))
	require.NotNil(t, f.Request)
	assert.Equal(t, http.MethodGet, f.Request.Method)
}

func TestTransportErrorFailureHasNoResponse(t *testing.T) {
	tr := newScripted(step{err: NewNetworkError("dial", errors.New("no route"))})
	c := newTestBuilder(tr, &recordingSleeper{}).Build()

	_, err := c.Get(context.Background(), testPath)

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Nil(t, f.Response)
	assert.Equal(t, 0, f.StatusCode())
	assert.Equal(t, CodeNetwork, f.Code)
}

func TestRetryOutcomeResubmitsFromOnRequest(t *testing.T) {
	tr := newScripted(statusStep(http.StatusServiceUnavailable, ""), okStep("done"))
	sleeper := &recordingSleeper{}
	var requests atomic.Int32
	c := newTestBuilder(tr, sleeper).
		WithInterceptor(Interceptor{
			Name: "count",
			OnRequest: func(context.Context, *Request) error {
				requests.Add(1)
				return nil
			},
		}).
		WithInterceptor(Interceptor{
			Name: "retry-once",
			OnError: func(_ context.Context, err error) Outcome {
				f, _ := AsFailure(err)
				if f.Request.Meta.AttemptCount == 0 {
					f.Request.Meta.AttemptCount++
					return Retry(25 * time.Millisecond)
				}
				return Next(nil)
			},
		}).
		Build()

	resp, err := c.Get(context.Background(), testPath)

	require.NoError(t, err)
	assert.Equal(t, "done", string(resp.Body))
	assert.Equal(t, 2, resp.Stats.Attempts)
	assert.Equal(t, int32(2), requests.Load())
	assert.Equal(t, []time.Duration{25 * time.Millisecond}, sleeper.Delays())
}

func TestNextAndRejectThreadErrors(t *testing.T) {
	replaced := errors.New("replaced")
	final := errors.New("final")

	t.Run("next with nil keeps current error", func(t *testing.T) {
		tr := newScripted(statusStep(http.StatusBadRequest, ""))
		c := newTestBuilder(tr, &recordingSleeper{}).
			WithInterceptor(Interceptor{Name: "noop", OnError: func(context.Context, error) Outcome { return Next(nil) }}).
			Build()
		_, err := c.Get(context.Background(), testPath)
		_, ok := AsFailure(err)
		assert.True(t, ok)
	})

	t.Run("next replaces error for later handlers", func(t *testing.T) {
		tr := newScripted(statusStep(http.StatusBadRequest, ""))
		var seen error
		c := newTestBuilder(tr, &recordingSleeper{}).
			WithInterceptor(Interceptor{Name: "swap", OnError: func(context.Context, error) Outcome { return Next(replaced) }}).
			WithInterceptor(Interceptor{Name: "observe", OnError: func(_ context.Context, err error) Outcome {
				seen = err
				return Next(nil)
			}}).
			Build()
		_, err := c.Get(context.Background(), testPath)
		assert.ErrorIs(t, err, replaced)
		assert.ErrorIs(t, seen, replaced)
	})

	t.Run("reject stops the chain", func(t *testing.T) {
		tr := newScripted(statusStep(http.StatusBadRequest, ""))
		laterCalled := false
		c := newTestBuilder(tr, &recordingSleeper{}).
			WithInterceptor(Interceptor{Name: "stop", OnError: func(context.Context, error) Outcome { return Reject(final) }}).
			WithInterceptor(Interceptor{Name: "later", OnError: func(context.Context, error) Outcome {
				laterCalled = true
				return Next(nil)
			}}).
			Build()
		_, err := c.Get(context.Background(), testPath)
		assert.ErrorIs(t, err, final)
		assert.False(t, laterCalled)
	})
}

func TestMaxAttemptsCapsRetries(t *testing.T) {
	tr := newScripted(statusStep(http.StatusInternalServerError, ""))
	c := newTestBuilder(tr, &recordingSleeper{}).
		WithMaxAttempts(3).
		WithInterceptor(Interceptor{Name: "always", OnError: func(context.Context, error) Outcome { return Retry(0) }}).
		Build()

	_, err := c.Get(context.Background(), testPath)

	require.Error(t, err)
	assert.Equal(t, 3, tr.Calls())
}

func TestCancelledContextSkipsHandlers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := TransportFunc(func(context.Context, *Request) (*Response, error) {
		cancel()
		return nil, NewNetworkError("aborted", context.Canceled)
	})
	called := false
	c := NewBuilder(logger.Nop()).
		WithTransport(tr).
		WithInterceptor(Interceptor{Name: "h", OnError: func(context.Context, error) Outcome {
			called = true
			return Retry(0)
		}}).
		Build()

	_, err := c.Get(ctx, "https://api.example.com/x")

	require.Error(t, err)
	assert.False(t, called)
}

func TestSleeperErrorEndsCall(t *testing.T) {
	tr := newScripted(statusStep(http.StatusBadGateway, ""))
	c := NewBuilder(logger.Nop()).
		WithBaseURL("https://api.example.com").
		WithTransport(tr).
		WithSleeper(func(context.Context, time.Duration) error { return context.Canceled }).
		WithInterceptor(Interceptor{Name: "retry", OnError: func(context.Context, error) Outcome { return Retry(time.Second) }}).
		Build()

	_, err := c.Get(context.Background(), testPath)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, tr.Calls())
}

func TestRegisterAppendsAfterBuild(t *testing.T) {
	tr := newScripted(okStep(""))
	c := newTestBuilder(tr, &recordingSleeper{}).Build()
	c.Register(Interceptor{Name: "late", OnRequest: func(_ context.Context, req *Request) error {
		req.Header.Set("X-Late", "1")
		return nil
	}})

	_, err := c.Get(context.Background(), testPath)

	require.NoError(t, err)
	assert.Equal(t, "1", tr.Requests()[0].Header.Get("X-Late"))
}

func TestNewRequestHeadersAndBody(t *testing.T) {
	tr := newScripted(okStep(""))
	c := newTestBuilder(tr, &recordingSleeper{}).
		WithDefaultHeader("X-App", "probe").
		Build()

	_, err := c.Post(context.Background(), "items", map[string]any{"name": "a"},
		WithHeader("X-App", "override"),
		WithQuery(url.Values{"page": {"2"}}),
		WithTimeout(3*time.Second),
	)

	require.NoError(t, err)
	req := tr.Requests()[0]
	assert.Equal(t, "https://api.example.com/items?page=2", req.URL)
	assert.Equal(t, "override", req.Header.Get("X-App"))
	assert.Equal(t, "application/json", req.Header.Get(HeaderContentType))
	assert.JSONEq(t, `{"name":"a"}`, string(req.Body))
	assert.Equal(t, 3*time.Second, req.Timeout)
}

func TestEncodeBody(t *testing.T) {
	tests := []struct {
		name string
		body any
		want string
	}{
		{name: "nil", body: nil, want: ""},
		{name: "bytes", body: []byte("raw"), want: "raw"},
		{name: "string", body: "text", want: "text"},
		{name: "reader", body: strings.NewReader("stream"), want: "stream"},
		{name: "struct", body: struct {
			ID int `json:"id"`
		}{ID: 7}, want: `{"id":7}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := encodeBody(tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	_, err := encodeBody(make(chan int))
	assert.True(t, IsErrorType(err, ValidationError))
}

func TestResolveURLRequiresBaseForRelative(t *testing.T) {
	c := NewBuilder(logger.Nop()).WithTransport(newScripted(okStep(""))).Build()

	_, err := c.Get(context.Background(), testPath)

	assert.True(t, IsErrorType(err, ValidationError))
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

// A backend that times out three times and then answers must succeed when the
// caller allows five retries.
func TestEndToEndTimeoutsThenSuccess(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 3 {
			<-r.Context().Done()
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"name":"sprocket"}]`))
	}))
	defer srv.Close()

	retry := NewRetryInterceptor(RetryConfig{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}, logger.Nop())
	var weakSeen atomic.Bool
	c := NewBuilder(logger.Nop()).
		WithBaseURL(srv.URL).
		WithTimeout(100 * time.Millisecond).
		WithInterceptor(NewRequestIDInterceptor()).
		WithInterceptor(retry.Interceptor()).
		WithInterceptor(Interceptor{Name: "observe", OnError: func(_ context.Context, err error) Outcome {
			if f, ok := AsFailure(err); ok && f.WeakNetwork {
				weakSeen.Store(true)
			}
			return Next(nil)
		}}).
		Build()

	type widget struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	widgets, err := GetJSON[[]widget](context.Background(), c, testPath, WithMaxRetries(5))

	require.NoError(t, err)
	require.Len(t, widgets, 1)
	assert.Equal(t, "sprocket", widgets[0].Name)
	assert.Equal(t, int32(4), hits.Load())
	assert.True(t, weakSeen.Load())
	assert.False(t, retry.IsWeakNetwork())
	assert.Equal(t, 0, retry.ConsecutiveTimeouts())
}
