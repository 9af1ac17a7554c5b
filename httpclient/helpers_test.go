package httpclient

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ayska/apiclient/logger"
)

// step is one scripted transport result.
type step struct {
	status  int
	body    string
	headers http.Header
	err     error
}

// scriptedTransport replays steps in order and repeats the last one.
type scriptedTransport struct {
	mu       sync.Mutex
	steps    []step
	calls    int
	requests []*Request
}

func newScripted(steps ...step) *scriptedTransport {
	return &scriptedTransport{steps: steps}
}

func (s *scriptedTransport) Send(_ context.Context, req *Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req.Clone())
	idx := s.calls
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	s.calls++
	st := s.steps[idx]
	if st.err != nil {
		return nil, st.err
	}
	h := st.headers
	if h == nil {
		h = http.Header{}
	}
	return &Response{StatusCode: st.status, Body: []byte(st.body), Headers: h}, nil
}

func (s *scriptedTransport) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedTransport) Requests() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Request(nil), s.requests...)
}

// recordingSleeper records requested waits without waiting.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleeper) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func okStep(body string) step { return step{status: http.StatusOK, body: body} }

func statusStep(code int, body string) step { return step{status: code, body: body} }

func timeoutStep() step {
	return step{err: NewTimeoutError("request timeout", time.Second, context.DeadlineExceeded)}
}

func newTestBuilder(t *scriptedTransport, s *recordingSleeper) *Builder {
	return NewBuilder(logger.Nop()).
		WithBaseURL("https://api.example.com").
		WithTransport(t).
		WithSleeper(s.Sleep)
}
