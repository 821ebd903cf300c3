package dispatch

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/pushgate/pushgate/internal/dispatch"

// Metrics holds the OpenTelemetry instruments for notification dispatch.
type Metrics struct {
	sentTotal    metric.Int64Counter
	failedTotal  metric.Int64Counter
	batchesTotal metric.Int64Counter
}

// NewMetrics creates dispatch metrics instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	sentTotal, err := meter.Int64Counter(
		"push.dispatch.sent.total",
		metric.WithDescription("Notifications delivered to the push API"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	failedTotal, err := meter.Int64Counter(
		"push.dispatch.failed.total",
		metric.WithDescription("Notification deliveries rejected or failed"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	batchesTotal, err := meter.Int64Counter(
		"push.dispatch.batches.total",
		metric.WithDescription("Notification fan-out batches run"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		sentTotal:    sentTotal,
		failedTotal:  failedTotal,
		batchesTotal: batchesTotal,
	}, nil
}

// RecordBatch records the outcome of one fan-out batch.
func (m *Metrics) RecordBatch(ctx context.Context, result *Result) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("provider", "fcm"))
	m.batchesTotal.Add(ctx, 1, attrs)
	m.sentTotal.Add(ctx, int64(result.Successful), attrs)
	m.failedTotal.Add(ctx, int64(result.Failed), attrs)
}
