package httpclient

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"
)

func tracedClient(t *testing.T, tr *scriptedTransport) (Client, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	c := newTestBuilder(tr, &recordingSleeper{}).Build()
	c.(*client).tracer = tp.Tracer("test")
	c.Register(NewRetryInterceptor(RetryConfig{}, nil).Interceptor())
	return c, recorder
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestClientSpanRecordsRetries(t *testing.T) {
	c, recorder := tracedClient(t, newScripted(statusStep(http.StatusBadGateway, ""), okStep(`{}`)))

	_, err := c.Get(context.Background(), testPath)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "HTTP GET", span.Name())
	assert.Equal(t, oteltrace.SpanKindClient, span.SpanKind())

	status, ok := spanAttr(span, "http.response.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(http.StatusOK), status.AsInt64())
	resends, ok := spanAttr(span, "http.request.resend_count")
	require.True(t, ok)
	assert.Equal(t, int64(1), resends.AsInt64())

	require.Len(t, span.Events(), 1)
	assert.Equal(t, "retry", span.Events()[0].Name)
}

func TestClientSpanMarksClassifiedFailure(t *testing.T) {
	c, recorder := tracedClient(t, newScripted(statusStep(http.StatusNotFound, `{"message":"Widget not found"}`)))

	_, err := c.Get(context.Background(), testPath)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, string(Classify(err).Kind), spans[0].Status().Description)
}
