package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics records authentication lifecycle metrics.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: recording must not panic; a nil *AuthMetrics is a no-op.
type AuthMetrics struct {
	authTotal    metric.Int64Counter
	refreshTotal metric.Int64Counter
	retryTotal   metric.Int64Counter
	promptFails  metric.Int64Counter
	toolDuration metric.Float64Histogram
}

// NewAuthMetrics creates the instrument set on the given meter.
func NewAuthMetrics(meter metric.Meter) (*AuthMetrics, error) {
	authTotal, err := meter.Int64Counter(
		"nps.auth.attempts",
		metric.WithDescription("Authenticate calls by strategy and outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	refreshTotal, err := meter.Int64Counter(
		"nps.auth.refreshes",
		metric.WithDescription("Token refresh calls by outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	retryTotal, err := meter.Int64Counter(
		"nps.http.retries",
		metric.WithDescription("HTTP retries triggered by 500 responses"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	promptFails, err := meter.Int64Counter(
		"nps.auth.prompt_failures",
		metric.WithDescription("MFA prompt failures (timeout or unavailable channel)"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	toolDuration, err := meter.Float64Histogram(
		"nps.tool.duration_ms",
		metric.WithDescription("Tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{
		authTotal:    authTotal,
		refreshTotal: refreshTotal,
		retryTotal:   retryTotal,
		promptFails:  promptFails,
		toolDuration: toolDuration,
	}, nil
}

// RecordAuthenticate counts one authenticate call.
func (m *AuthMetrics) RecordAuthenticate(ctx context.Context, strategy string, err error) {
	if m == nil {
		return
	}
	m.authTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("strategy", strategy),
		attribute.String("outcome", outcome(err)),
	))
}

// RecordRefresh counts one token refresh call.
func (m *AuthMetrics) RecordRefresh(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.refreshTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome(err)),
	))
}

// RecordRetry counts one HTTP retry.
func (m *AuthMetrics) RecordRetry(ctx context.Context, attempt int) {
	if m == nil {
		return
	}
	m.retryTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("attempt", attempt),
	))
}

// RecordPromptFailure counts one MFA prompt failure.
func (m *AuthMetrics) RecordPromptFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.promptFails.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// RecordToolCall records one tool invocation with duration and error status.
func (m *AuthMetrics) RecordToolCall(ctx context.Context, tool string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.toolDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("outcome", outcome(err)),
	))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
