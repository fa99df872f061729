package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/FACorreiaa/churninsight-dashboard/internal/app/session"
)

func TestSessionRecorder(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := newAppMetrics(provider.Meter("test"))
	require.NoError(t, err)

	rec := NewSessionRecorder(m)
	rec.CheckCompleted(session.StateValid)
	rec.CheckCompleted(session.StateValid)
	rec.CheckCompleted(session.StateExpiredOrInvalid)
	rec.RedirectScheduled()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			data, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range data.DataPoints {
				key := md.Name
				if state, ok := dp.Attributes.Value("state"); ok {
					key += "/" + state.AsString()
				}
				sums[key] += dp.Value
			}
		}
	}

	assert.Equal(t, int64(2), sums["session_checks_total/VALID"])
	assert.Equal(t, int64(1), sums["session_checks_total/EXPIRED_OR_INVALID"])
	assert.Equal(t, int64(1), sums["session_redirects_total"])
}

func TestAPIRecorder(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := newAppMetrics(provider.Meter("test"))
	require.NoError(t, err)

	rec := NewAPIRecorder(m)
	rec.RequestCompleted(context.Background(), "logs", 200, 20*time.Millisecond)
	rec.RequestCompleted(context.Background(), "predict", 200, 40*time.Millisecond)
	rec.RequestCompleted(context.Background(), "batch_predict", 502, time.Second)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := map[string]int64{}
	var histogramCount uint64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			switch data := md.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					totals[md.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					histogramCount += dp.Count
				}
			}
		}
	}

	assert.Equal(t, int64(3), totals["api_requests_total"])
	assert.Equal(t, int64(2), totals["prediction_requests_total"])
	assert.Equal(t, uint64(3), histogramCount)
}
