package httpclient

import (
	"context"

	"github.com/ayska/apiclient/trace"
)

// NewRequestIDInterceptor sets X-Request-ID. The ID is chosen once per logical
// request, from the header, the context or a new UUID, and kept on retries.
func NewRequestIDInterceptor() Interceptor {
	return Interceptor{
		Name: "request_id",
		OnRequest: func(ctx context.Context, req *Request) error {
			if req.Meta.RequestID == "" {
				if id := req.Header.Get(HeaderXRequestID); id != "" {
					req.Meta.RequestID = id
				} else {
					req.Meta.RequestID = trace.EnsureRequestID(ctx)
				}
			}
			req.Header.Set(HeaderXRequestID, req.Meta.RequestID)
			return nil
		},
	}
}
