package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

type authMetrics struct {
	logins    metric.Int64Counter
	refreshes metric.Int64Counter
	logouts   metric.Int64Counter
}

func newAuthMetrics(meter metric.Meter) (*authMetrics, error) {
	logins, err := meter.Int64Counter("auth.logins",
		metric.WithDescription("Login attempts by method and outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create logins counter: %w", err)
	}

	refreshes, err := meter.Int64Counter("auth.refreshes",
		metric.WithDescription("Access token reissues by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create refreshes counter: %w", err)
	}

	logouts, err := meter.Int64Counter("auth.logouts",
		metric.WithDescription("Logouts by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create logouts counter: %w", err)
	}

	return &authMetrics{logins: logins, refreshes: refreshes, logouts: logouts}, nil
}

func outcome(err error) string {
	if err != nil {
		return outcomeFailure
	}
	return outcomeSuccess
}

func (m *authMetrics) login(ctx context.Context, method string, err error) {
	m.logins.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome(err)),
	))
}

func (m *authMetrics) refresh(ctx context.Context, err error) {
	m.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
}

func (m *authMetrics) logout(ctx context.Context, result string) {
	m.logouts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", result)))
}
