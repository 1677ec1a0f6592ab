package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/medcart/internal/domain/order"
)

type metrics struct {
	attempts   metric.Int64Counter
	failures   metric.Int64Counter
	orders     metric.Int64Counter
	orderValue metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	var (
		m   metrics
		err error
	)
	if m.attempts, err = meter.Int64Counter("checkout.attempts",
		metric.WithDescription("Checkout submissions"),
	); err != nil {
		return nil, errors.Wrap(err, "checkout.attempts")
	}
	if m.failures, err = meter.Int64Counter("checkout.failures",
		metric.WithDescription("Checkout submissions that did not complete"),
	); err != nil {
		return nil, errors.Wrap(err, "checkout.failures")
	}
	if m.orders, err = meter.Int64Counter("checkout.orders",
		metric.WithDescription("Orders placed"),
	); err != nil {
		return nil, errors.Wrap(err, "checkout.orders")
	}
	if m.orderValue, err = meter.Float64Histogram("checkout.order_value",
		metric.WithDescription("Payable total of placed orders"),
	); err != nil {
		return nil, errors.Wrap(err, "checkout.order_value")
	}
	return &m, nil
}

func (m *metrics) attempt(ctx context.Context, method order.PaymentMethod) {
	m.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", string(method))))
}

func (m *metrics) fail(ctx context.Context, stage string) {
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

func (m *metrics) placed(ctx context.Context, o *order.Order) {
	attrs := metric.WithAttributes(attribute.String("payment_method", string(o.PaymentMethod)))
	m.orders.Add(ctx, 1, attrs)
	m.orderValue.Record(ctx, o.Total.InexactFloat64(), attrs)
}
