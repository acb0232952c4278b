package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collecting metrics: %v", err)
	}

	byName := map[string]metricdata.Metrics{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			byName[m.Name] = m
		}
	}
	return byName
}

func counterValue(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s data type = %T, want Sum[int64]", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestAuthMetrics_RecordsCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	metrics, err := NewAuthMetrics(provider.Meter("test"))
	if err != nil {
		t.Fatalf("NewAuthMetrics() error = %v", err)
	}

	ctx := context.Background()
	metrics.RecordAuthenticate(ctx, "apikey", nil)
	metrics.RecordAuthenticate(ctx, "token", errors.New("rejected"))
	metrics.RecordRefresh(ctx, nil)
	metrics.RecordRetry(ctx, 0)
	metrics.RecordRetry(ctx, 1)
	metrics.RecordPromptFailure(ctx, "timeout")
	metrics.RecordToolCall(ctx, "nps_version", 42*time.Millisecond, nil)

	byName := collectMetrics(t, reader)

	counters := map[string]int64{
		"nps.auth.attempts":        2,
		"nps.auth.refreshes":       1,
		"nps.http.retries":         2,
		"nps.auth.prompt_failures": 1,
	}
	for name, want := range counters {
		m, ok := byName[name]
		if !ok {
			t.Errorf("metric %s was not exported", name)
			continue
		}
		if got := counterValue(t, m); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}

	hist, ok := byName["nps.tool.duration_ms"]
	if !ok {
		t.Fatal("metric nps.tool.duration_ms was not exported")
	}
	data, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("histogram data type = %T, want Histogram[float64]", hist.Data)
	}
	if len(data.DataPoints) != 1 || data.DataPoints[0].Count != 1 {
		t.Errorf("histogram data points = %v, want one recording", data.DataPoints)
	}
}

func TestAuthMetrics_NilReceiverIsNoop(t *testing.T) {
	var metrics *AuthMetrics

	// Every recorder must tolerate a nil receiver; panics here would take
	// down callers that run without a meter provider.
	ctx := context.Background()
	metrics.RecordAuthenticate(ctx, "interactive", nil)
	metrics.RecordRefresh(ctx, errors.New("boom"))
	metrics.RecordRetry(ctx, 2)
	metrics.RecordPromptFailure(ctx, "unavailable")
	metrics.RecordToolCall(ctx, "nps_whoami", time.Second, nil)
}
