package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PaymentMetrics holds the portal's payment instruments. Reconciliation
// failures get their own counter: an increment there means a customer was
// charged without an invoice and an operator has to act.
type PaymentMetrics struct {
	attempts               metric.Int64Counter
	reconciliationFailures metric.Int64Counter
}

func NewPaymentMetrics() (*PaymentMetrics, error) {
	meter := otel.Meter("payportal/payment")

	attempts, err := meter.Int64Counter("payportal.payment.attempts",
		metric.WithDescription("Payment attempts by charge outcome"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter("payportal.payment.reconciliation_failures",
		metric.WithDescription("Charges that succeeded but could not be invoiced"),
	)
	if err != nil {
		return nil, err
	}

	return &PaymentMetrics{
		attempts:               attempts,
		reconciliationFailures: failures,
	}, nil
}

func (m *PaymentMetrics) RecordAttempt(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *PaymentMetrics) RecordReconciliationFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.reconciliationFailures.Add(ctx, 1)
}
