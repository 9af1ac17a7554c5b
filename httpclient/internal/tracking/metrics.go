// Package tracking records OpenTelemetry metrics for the API client.
package tracking

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/ayska/apiclient/httpclient"

	metricRequestDuration = "http.client.request.duration" // Histogram in seconds
	metricRetries         = "http.client.retries"
	metricWeakNetwork     = "http.client.weak_network"
	metricTokenRefreshes  = "auth.token.refreshes"

	attrMethod     = "http.request.method"
	attrStatusCode = "http.response.status_code"
	attrErrorType  = "error.type"
	attrAttempts   = "http.request.attempts"
	attrReason     = "retry.reason"
	attrOutcome    = "outcome"
)

var (
	meter       metric.Meter
	meterOnce   sync.Once
	meterInitMu sync.Mutex

	requestDuration metric.Float64Histogram
	retryCounter    metric.Int64Counter
	weakCounter     metric.Int64Counter
	refreshCounter  metric.Int64Counter
)

// logMetricError logs a metric initialization error to stderr.
func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize client metric %s: %v\n", metricName, err)
	}
}

func initMeter() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	if meter != nil {
		return
	}
	meter = otel.Meter(meterName)

	var err error
	requestDuration, err = meter.Float64Histogram(
		metricRequestDuration,
		metric.WithDescription("Duration of logical API requests including retries"),
		metric.WithUnit("s"),
	)
	logMetricError(metricRequestDuration, err)

	retryCounter, err = meter.Int64Counter(
		metricRetries,
		metric.WithDescription("Number of scheduled retries"),
		metric.WithUnit("{retry}"),
	)
	logMetricError(metricRetries, err)

	weakCounter, err = meter.Int64Counter(
		metricWeakNetwork,
		metric.WithDescription("Number of failures tagged as weak network"),
		metric.WithUnit("{failure}"),
	)
	logMetricError(metricWeakNetwork, err)

	refreshCounter, err = meter.Int64Counter(
		metricTokenRefreshes,
		metric.WithDescription("Number of access token refresh calls"),
		metric.WithUnit("{refresh}"),
	)
	logMetricError(metricTokenRefreshes, err)
}

func ensureMeter() {
	meterOnce.Do(initMeter)
}

// RecordRequest records the duration of one logical request. errKind is empty
// on success.
func RecordRequest(ctx context.Context, method string, status, attempts int, duration time.Duration, errKind string) {
	ensureMeter()

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.Int(attrAttempts, attempts),
	}
	if status != 0 {
		attrs = append(attrs, attribute.Int(attrStatusCode, status))
	}
	if errKind != "" {
		attrs = append(attrs, attribute.String(attrErrorType, errKind))
	}

	if requestDuration != nil {
		requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
}

// RecordRetry counts a scheduled retry. reason is "status" or "transport".
func RecordRetry(ctx context.Context, method, reason string) {
	ensureMeter()
	if retryCounter != nil {
		retryCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrMethod, method),
			attribute.String(attrReason, reason),
		))
	}
}

// RecordWeakNetwork counts a failure tagged as weak network.
func RecordWeakNetwork(ctx context.Context) {
	ensureMeter()
	if weakCounter != nil {
		weakCounter.Add(ctx, 1)
	}
}

// RecordTokenRefresh counts a refresh call; success selects the outcome attribute.
func RecordTokenRefresh(ctx context.Context, success bool) {
	ensureMeter()
	outcome := "failure"
	if success {
		outcome = "success"
	}
	if refreshCounter != nil {
		refreshCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOutcome, outcome)))
	}
}

// ResetForTesting resets the metric state for testing purposes.
func ResetForTesting() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	meter = nil
	requestDuration = nil
	retryCounter = nil
	weakCounter = nil
	refreshCounter = nil
	meterOnce = sync.Once{}
}
