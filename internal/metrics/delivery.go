package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/himmelstrup/timepush/internal/reminder"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DeliveryMetrics counts push outcomes and times reminder runs. It is a
// reminder.Observer.
type DeliveryMetrics struct {
	deliveries  metric.Int64Counter
	runDuration metric.Float64Histogram
}

// NewDeliveryMetrics registers <namespace>_deliveries_total{outcome,trigger}
// and <namespace>_run_duration_seconds{trigger}.
func NewDeliveryMetrics(meterProvider metric.MeterProvider, namespace string) (*DeliveryMetrics, error) {
	meter := meterProvider.Meter(namespace)

	deliveries, err := meter.Int64Counter(
		fmt.Sprintf("%s_deliveries_total", namespace),
		metric.WithDescription("Push delivery attempts by outcome"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create deliveries counter: %w", err)
	}

	runDuration, err := meter.Float64Histogram(
		fmt.Sprintf("%s_run_duration_seconds", namespace),
		metric.WithDescription("Duration of reminder sweeps and test sends in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create run duration histogram: %w", err)
	}

	return &DeliveryMetrics{deliveries: deliveries, runDuration: runDuration}, nil
}

func (m *DeliveryMetrics) Delivery(ctx context.Context, d reminder.Delivery) {
	m.deliveries.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("outcome", string(d.Outcome.Kind)),
			attribute.String("trigger", d.Trigger),
		),
	)
}

func (m *DeliveryMetrics) RunFinished(ctx context.Context, trigger string, elapsed time.Duration) {
	m.runDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("trigger", trigger)),
	)
}
