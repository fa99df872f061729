package metrics

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/churninsight-dashboard/internal/app/api"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/session"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	HTTPRequestsTotal        metric.Int64Counter
	HTTPRequestDuration      metric.Float64Histogram
	SessionChecksTotal       metric.Int64Counter
	SessionRedirectsTotal    metric.Int64Counter
	APIRequestsTotal         metric.Int64Counter
	APIRequestDuration       metric.Float64Histogram
	PredictionsRequestsTotal metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
	initErr    error
)

// InitAppMetrics creates the instruments once from the global MeterProvider.
func InitAppMetrics() error {
	once.Do(func() {
		appMetrics, initErr = newAppMetrics(otel.GetMeterProvider().Meter("churninsight-dashboard"))
	})
	return initErr
}

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	var err error
	m := &AppMetrics{}

	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests completed"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("metrics: http_requests_total: %w", err)
	}

	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("metrics: http_request_duration_seconds: %w", err)
	}

	if m.SessionChecksTotal, err = meter.Int64Counter(
		"session_checks_total",
		metric.WithDescription("Session validity checks by resulting state"),
		metric.WithUnit("{check}"),
	); err != nil {
		return nil, fmt.Errorf("metrics: session_checks_total: %w", err)
	}

	if m.SessionRedirectsTotal, err = meter.Int64Counter(
		"session_redirects_total",
		metric.WithDescription("Redirects to the entry page scheduled after a session ended"),
		metric.WithUnit("{redirect}"),
	); err != nil {
		return nil, fmt.Errorf("metrics: session_redirects_total: %w", err)
	}

	if m.APIRequestsTotal, err = meter.Int64Counter(
		"api_requests_total",
		metric.WithDescription("Requests sent to the prediction backend"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("metrics: api_requests_total: %w", err)
	}

	if m.APIRequestDuration, err = meter.Float64Histogram(
		"api_request_duration_seconds",
		metric.WithDescription("Duration of prediction backend requests in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("metrics: api_request_duration_seconds: %w", err)
	}

	if m.PredictionsRequestsTotal, err = meter.Int64Counter(
		"prediction_requests_total",
		metric.WithDescription("Single and batch churn predictions requested"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("metrics: prediction_requests_total: %w", err)
	}

	return m, nil
}

// Get returns the initialized instruments. Panics if InitAppMetrics was not
// called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}

var _ session.Recorder = (*SessionRecorder)(nil)

// SessionRecorder feeds session monitor transitions into the session
// instruments.
type SessionRecorder struct {
	m *AppMetrics
}

func NewSessionRecorder(m *AppMetrics) *SessionRecorder {
	return &SessionRecorder{m: m}
}

func (r *SessionRecorder) CheckCompleted(state session.State) {
	r.m.SessionChecksTotal.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("state", state.String())))
}

func (r *SessionRecorder) RedirectScheduled() {
	r.m.SessionRedirectsTotal.Add(context.Background(), 1)
}

var _ api.Recorder = (*APIRecorder)(nil)

// APIRecorder counts and times backend calls per endpoint.
type APIRecorder struct {
	m *AppMetrics
}

func NewAPIRecorder(m *AppMetrics) *APIRecorder {
	return &APIRecorder{m: m}
}

func (r *APIRecorder) RequestCompleted(ctx context.Context, endpoint string, status int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", strconv.Itoa(status)),
	)
	r.m.APIRequestsTotal.Add(ctx, 1, attrs)
	r.m.APIRequestDuration.Record(ctx, elapsed.Seconds(), attrs)
	if endpoint == "predict" || endpoint == "batch_predict" {
		r.m.PredictionsRequestsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("kind", endpoint)))
	}
}
