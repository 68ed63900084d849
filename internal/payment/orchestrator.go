package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/casteele/payportal/internal/domain"
	"github.com/casteele/payportal/internal/telemetry"
)

var tracer = otel.Tracer("payment/orchestrator")

var (
	// ErrOrderNotFound covers both an absent order and an email mismatch;
	// the two are deliberately indistinguishable to the caller.
	ErrOrderNotFound = errors.New("order not found")
	// ErrNotPayable means the order is in a terminal status.
	ErrNotPayable = errors.New("order not eligible for payment")
	// ErrNothingDue means the order has no outstanding balance.
	ErrNothingDue = errors.New("order has no balance due")
	// ErrPaymentInProgress rejects a second concurrent submission for the
	// same order before it can reach the gateway.
	ErrPaymentInProgress = errors.New("payment already in progress for this order")
	// ErrUnsupportedMethod rejects a payment method this portal does not take.
	ErrUnsupportedMethod = errors.New("unsupported payment method")
)

// GatewayError is a non-approved charge outcome. Message is the normalized
// customer-safe text from classification.
type GatewayError struct {
	Outcome domain.ChargeOutcome
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("charge %s: %s", e.Outcome, e.Message)
}

// OrderStore is the portal's window onto the authoritative order system.
type OrderStore interface {
	LookupOrder(ctx context.Context, orderNumber string) (*domain.Order, error)
	CreateInvoice(ctx context.Context, orderID int64, items []domain.LineItem, transactionID string) error
	AddOrderComment(ctx context.Context, orderID int64, comment string) error
}

// Charger submits charges to the payment gateway. Both methods are total:
// a declined or held payment comes back as a ChargeResult, never an error.
type Charger interface {
	ChargeCard(ctx context.Context, amount decimal.Decimal, card domain.Card, orderRef string) (domain.ChargeResult, error)
	ChargeBankDebit(ctx context.Context, amount decimal.Decimal, bank domain.BankDebit, orderRef string) (domain.ChargeResult, error)
}

type OrderSummary struct {
	IncrementID string            `json:"incrementId"`
	GrandTotal  decimal.Decimal   `json:"grandTotal"`
	TotalDue    decimal.Decimal   `json:"totalDue"`
	Items       []SummaryLineItem `json:"items"`
}

type SummaryLineItem struct {
	Name     string          `json:"name"`
	SKU      string          `json:"sku"`
	Qty      int             `json:"qty"`
	Price    decimal.Decimal `json:"price"`
	RowTotal decimal.Decimal `json:"rowTotal"`
}

type SubmitRequest struct {
	OrderNumber string
	Email       string
	Method      domain.PaymentMethod
	Card        *domain.Card
	Bank        *domain.BankDebit
}

type Receipt struct {
	TransactionID string
	AuthCode      string
}

func (r SubmitRequest) validate() error {
	switch r.Method {
	case domain.MethodCard:
		if r.Card == nil {
			return ErrUnsupportedMethod
		}
	case domain.MethodBankDebit:
		if r.Bank == nil {
			return ErrUnsupportedMethod
		}
	default:
		return ErrUnsupportedMethod
	}
	return nil
}

// Orchestrator drives a payment attempt end to end: verify against the order
// store, charge through the gateway, reconcile the result back into the
// order store. It holds no state across attempts; every call re-reads the
// order fresh.
type Orchestrator struct {
	store            OrderStore
	charger          Charger
	metrics          *telemetry.PaymentMetrics
	logger           *slog.Logger
	reconcileTimeout time.Duration

	// inflight guards against a double-submit for the same order from this
	// process (a retried request or a second browser tab). It is local only:
	// two replicas can still race, which the order store does not prevent.
	inflight sync.Map
}

func NewOrchestrator(store OrderStore, charger Charger, metrics *telemetry.PaymentMetrics, logger *slog.Logger, reconcileTimeout time.Duration) *Orchestrator {
	if reconcileTimeout <= 0 {
		reconcileTimeout = 15 * time.Second
	}
	return &Orchestrator{
		store:            store,
		charger:          charger,
		metrics:          metrics,
		logger:           logger,
		reconcileTimeout: reconcileTimeout,
	}
}

// VerifyOrderForPayment looks up the order and checks it is eligible for
// payment. The same checks run again inside SubmitPayment; nothing from this
// call is cached.
func (o *Orchestrator) VerifyOrderForPayment(ctx context.Context, orderNumber, email string) (*OrderSummary, error) {
	order, err := o.verify(ctx, orderNumber, email)
	if err != nil {
		return nil, err
	}

	summary := &OrderSummary{
		IncrementID: order.IncrementID,
		GrandTotal:  order.GrandTotal,
		TotalDue:    order.TotalDue,
		Items:       make([]SummaryLineItem, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		summary.Items = append(summary.Items, SummaryLineItem{
			Name:     item.Name,
			SKU:      item.SKU,
			Qty:      item.QtyOrdered,
			Price:    item.Price,
			RowTotal: item.RowTotal,
		})
	}
	return summary, nil
}

func (o *Orchestrator) verify(ctx context.Context, orderNumber, email string) (*domain.Order, error) {
	order, err := o.store.LookupOrder(ctx, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("verify order %s: %w", orderNumber, err)
	}
	if order == nil || !strings.EqualFold(order.CustomerEmail, email) {
		return nil, ErrOrderNotFound
	}
	if order.Status.Terminal() {
		return nil, ErrNotPayable
	}
	if order.TotalDue.LessThanOrEqual(decimal.Zero) {
		return nil, ErrNothingDue
	}
	return order, nil
}

// SubmitPayment runs the full sequence for one payment attempt. The charged
// amount is always the due amount re-read here, never anything the caller
// supplied. On an approved charge the receipt is returned even when invoice
// creation fails; money has moved, and hiding that behind an error would be
// worse than a delayed invoice.
func (o *Orchestrator) SubmitPayment(ctx context.Context, req SubmitRequest) (*Receipt, error) {
	ctx, span := tracer.Start(ctx, "SubmitPayment")
	defer span.End()
	span.SetAttributes(attribute.String("order.number", req.OrderNumber))

	// Input errors are rejected before any external call is made.
	if err := req.validate(); err != nil {
		return nil, err
	}

	if _, loaded := o.inflight.LoadOrStore(req.OrderNumber, struct{}{}); loaded {
		return nil, ErrPaymentInProgress
	}
	defer o.inflight.Delete(req.OrderNumber)

	// Re-verify immediately before charging. Status is re-checked here too:
	// an order canceled between lookup and submission must not be charged.
	order, err := o.verify(ctx, req.OrderNumber, req.Email)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result, err := o.charge(ctx, order, req)
	if err != nil {
		o.metrics.RecordAttempt(ctx, string(domain.OutcomeUnknown))
		o.logger.Error("charge transport failure", "order_number", order.IncrementID, "error", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &GatewayError{
			Outcome: domain.OutcomeUnknown,
			Message: "Payment processing failed. Please try again.",
		}
	}

	o.metrics.RecordAttempt(ctx, string(result.Outcome))
	span.SetAttributes(attribute.String("charge.outcome", string(result.Outcome)))

	if !result.Approved() {
		if result.Outcome == domain.OutcomeConfigError {
			o.logger.Error("gateway configuration error",
				"order_number", order.IncrementID,
				"diagnostic", result.RawDiagnostic,
			)
		} else {
			o.logger.Info("charge not approved",
				"order_number", order.IncrementID,
				"outcome", result.Outcome,
			)
		}
		span.SetStatus(codes.Error, string(result.Outcome))
		return nil, &GatewayError{Outcome: result.Outcome, Message: result.Message}
	}

	o.logger.Info("charge approved",
		"order_number", order.IncrementID,
		"transaction_id", result.TransactionID,
	)

	o.reconcile(ctx, order, result)

	return &Receipt{
		TransactionID: result.TransactionID,
		AuthCode:      result.AuthCode,
	}, nil
}

func (o *Orchestrator) charge(ctx context.Context, order *domain.Order, req SubmitRequest) (domain.ChargeResult, error) {
	if req.Method == domain.MethodBankDebit {
		return o.charger.ChargeBankDebit(ctx, order.TotalDue, *req.Bank, order.IncrementID)
	}
	return o.charger.ChargeCard(ctx, order.TotalDue, *req.Card, order.IncrementID)
}

// reconcile records the approved charge back into the order store. It runs
// on a context detached from the request with its own deadline: a client
// disconnect must not abort bookkeeping for a charge that already happened.
func (o *Orchestrator) reconcile(ctx context.Context, order *domain.Order, result domain.ChargeResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.reconcileTimeout)
	defer cancel()

	if err := o.store.CreateInvoice(ctx, order.EntityID, order.Items, result.TransactionID); err != nil {
		o.metrics.RecordReconciliationFailure(ctx)
		o.logger.Error("reconciliation failed: payment captured but invoice creation failed, manual invoice required",
			"order_number", order.IncrementID,
			"transaction_id", result.TransactionID,
			"error", err,
		)
		o.addComment(ctx, order, fmt.Sprintf(
			"CRITICAL: Payment received (Transaction ID: %s) but invoice creation failed. Manual invoice required. Error: %v",
			result.TransactionID, err,
		))
		return
	}

	o.addComment(ctx, order, fmt.Sprintf(
		"Payment received via Payment Portal. Transaction ID: %s, Auth Code: %s",
		result.TransactionID, result.AuthCode,
	))
}

// addComment is best-effort: an audit note is advisory, and its failure is
// never allowed to surface after money has moved.
func (o *Orchestrator) addComment(ctx context.Context, order *domain.Order, comment string) {
	if err := o.store.AddOrderComment(ctx, order.EntityID, comment); err != nil {
		o.logger.Error("failed to add order comment",
			"order_number", order.IncrementID,
			"error", err,
		)
	}
}
