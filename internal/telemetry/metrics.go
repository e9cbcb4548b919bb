package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/caparker/openaq-fetch/internal/telemetry"

// FetchMetrics holds the instruments recorded around adapter calls.
// A nil *FetchMetrics is valid and records nothing.
type FetchMetrics struct {
	fetchDuration metric.Float64Histogram
	fetchTotal    metric.Int64Counter
	emitted       metric.Int64Counter
	dropped       metric.Int64Counter
}

// NewFetchMetrics creates the fetch instruments on the global meter provider.
func NewFetchMetrics() (*FetchMetrics, error) {
	return NewFetchMetricsFrom(otel.GetMeterProvider())
}

// NewFetchMetricsFrom creates the fetch instruments on provider.
func NewFetchMetricsFrom(provider metric.MeterProvider) (*FetchMetrics, error) {
	meter := provider.Meter(meterName)

	fetchDuration, err := meter.Float64Histogram(
		"adapter.fetch.duration",
		metric.WithDescription("Duration of adapter fetches in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	fetchTotal, err := meter.Int64Counter(
		"adapter.fetch.total",
		metric.WithDescription("Total number of adapter fetches"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	emitted, err := meter.Int64Counter(
		"adapter.measurements.emitted",
		metric.WithDescription("Measurements returned by successful adapter fetches"),
		metric.WithUnit("{measurement}"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter(
		"adapter.readings.dropped",
		metric.WithDescription("Readings dropped by adapters or by the canonical invariants"),
		metric.WithUnit("{reading}"),
	)
	if err != nil {
		return nil, err
	}

	return &FetchMetrics{
		fetchDuration: fetchDuration,
		fetchTotal:    fetchTotal,
		emitted:       emitted,
		dropped:       dropped,
	}, nil
}

// RecordFetch records one adapter call.
func (m *FetchMetrics) RecordFetch(ctx context.Context, adapter string, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("adapter.name", adapter),
		attribute.Bool("error", err != nil),
	}
	m.fetchDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
	m.fetchTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEmitted counts measurements handed back to the caller.
func (m *FetchMetrics) RecordEmitted(ctx context.Context, adapter string, n int) {
	if m == nil {
		return
	}
	m.emitted.Add(ctx, int64(n), metric.WithAttributes(attribute.String("adapter.name", adapter)))
}

// RecordDropped counts one reading dropped for reason.
func (m *FetchMetrics) RecordDropped(ctx context.Context, adapter, reason string) {
	if m == nil {
		return
	}
	m.dropped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("adapter.name", adapter),
		attribute.String("drop.reason", reason),
	))
}
