package httpclient

import (
	"context"
	"time"

	"github.com/ayska/apiclient/logger"
)

// NewLoggingInterceptor logs each attempt, each success and each failure seen
// by the handlers after it. With logPayloads, headers and body sizes are logged
// at debug level with credentials masked.
func NewLoggingInterceptor(log logger.Logger, logPayloads bool) Interceptor {
	if log == nil {
		log = logger.Nop()
	}
	return Interceptor{
		Name: "logging",
		OnRequest: func(_ context.Context, req *Request) error {
			log.Info().
				Str("direction", "outbound").
				Str("method", req.Method).
				Str("url", req.URL).
				Str("request_id", req.Meta.RequestID).
				Int("attempt", req.Meta.AttemptCount).
				Msg("REST client request")
			if logPayloads {
				log.Debug().
					Str("method", req.Method).
					Str("url", req.URL).
					Interface("headers", req.Header).
					Int("body_size", len(req.Body)).
					Msg("REST client request payload")
			}
			return nil
		},
		OnResponse: func(_ context.Context, req *Request, resp *Response) error {
			log.Info().
				Str("direction", "inbound").
				Str("method", req.Method).
				Str("url", req.URL).
				Str("request_id", req.Meta.RequestID).
				Int("status", resp.StatusCode).
				Dur("elapsed", time.Since(req.Meta.StartTime)).
				Int("attempts", resp.Stats.Attempts).
				Msg("REST client response")
			if logPayloads {
				log.Debug().
					Str("url", req.URL).
					Interface("headers", resp.Headers).
					Int("body_size", len(resp.Body)).
					Msg("REST client response payload")
			}
			return nil
		},
		OnError: func(_ context.Context, err error) Outcome {
			event := log.Warn().Err(err)
			if f, ok := AsFailure(err); ok && f.Request != nil {
				event = event.
					Str("method", f.Request.Method).
					Str("url", f.Request.URL).
					Str("request_id", f.Request.Meta.RequestID).
					Int("status", f.StatusCode()).
					Str("code", f.Code).
					Int("attempt", f.Request.Meta.AttemptCount)
			}
			event.Msg("REST client request failed")
			return Next(nil)
		},
	}
}
