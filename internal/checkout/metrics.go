package checkout

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("storefront/checkout")

type metrics struct {
	completed metric.Int64Counter
	failed    metric.Int64Counter
	retries   metric.Int64Counter
	duration  metric.Float64Histogram
}

func newMetrics() (*metrics, error) {
	completed, err := meter.Int64Counter("checkout.completed",
		metric.WithDescription("Checkouts that produced an order"))
	if err != nil {
		return nil, err
	}

	failed, err := meter.Int64Counter("checkout.failed",
		metric.WithDescription("Checkouts rolled back, by reason"))
	if err != nil {
		return nil, err
	}

	retries, err := meter.Int64Counter("checkout.retries",
		metric.WithDescription("Checkout transactions re-run after a serialization failure or lost connection"))
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("checkout.duration",
		metric.WithDescription("End to end checkout latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &metrics{
		completed: completed,
		failed:    failed,
		retries:   retries,
		duration:  duration,
	}, nil
}

func (m *metrics) record(ctx context.Context, seconds float64, reason string) {
	outcome := attribute.String("outcome", "completed")
	if reason != "" {
		outcome = attribute.String("outcome", "failed")
		m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	} else {
		m.completed.Add(ctx, 1)
	}
	m.duration.Record(ctx, seconds, metric.WithAttributes(outcome))
}
