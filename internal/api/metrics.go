package api

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const namespace = "taskpulse_api"

// APIMetrics defines metrics operations needed by the presentation API.
type APIMetrics interface {
	IncRequestsTotal(ctx context.Context, method, path string, status int)
	ObserveRequestDuration(ctx context.Context, method, path string, duration time.Duration)
	IncEventSubscribers(ctx context.Context, delta int64)
	IncEventsDropped(ctx context.Context)
}

type apiMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	eventSubscribers metric.Int64UpDownCounter
	eventsDropped    metric.Int64Counter
}

// NewAPIMetrics creates the presentation API instruments on mp.
func NewAPIMetrics(mp metric.MeterProvider) (*apiMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(apiMetrics)
	var err error

	if m.requestsTotal, err = meter.Int64Counter(
		"requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.requestDuration, err = meter.Float64Histogram(
		"request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	); err != nil {
		return nil, err
	}

	if m.eventSubscribers, err = meter.Int64UpDownCounter(
		"event_subscribers",
		metric.WithDescription("Number of connected model change subscribers"),
	); err != nil {
		return nil, err
	}

	if m.eventsDropped, err = meter.Int64Counter(
		"events_dropped_total",
		metric.WithDescription("Total number of change events dropped for slow subscribers"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *apiMetrics) IncRequestsTotal(ctx context.Context, method, path string, status int) {
	m.requestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	))
}

func (m *apiMetrics) ObserveRequestDuration(ctx context.Context, method, path string, duration time.Duration) {
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
	))
}

func (m *apiMetrics) IncEventSubscribers(ctx context.Context, delta int64) {
	m.eventSubscribers.Add(ctx, delta)
}

func (m *apiMetrics) IncEventsDropped(ctx context.Context) { m.eventsDropped.Add(ctx, 1) }
