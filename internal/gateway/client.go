package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/casteele/payportal/internal/domain"
)

const (
	SandboxURL    = "https://apitest.authorize.net/xml/v1/request.api"
	ProductionURL = "https://api.authorize.net/xml/v1/request.api"

	// Reserved sandbox card numbers. They short-circuit to a canned result
	// without any network call so integration tests run deterministically.
	TestCardApproved = "4111111111111111"
	TestCardDeclined = "4000000000000002"
)

// Config selects the gateway endpoint and credentials once at construction.
// Nothing in the charge path reads ambient process state.
type Config struct {
	LoginID        string
	TransactionKey string
	Sandbox        bool
	// Endpoint overrides the sandbox/production URL when set. Used by tests.
	Endpoint string
}

type Client struct {
	cfg        Config
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	url := ProductionURL
	if cfg.Sandbox {
		url = SandboxURL
	}
	if cfg.Endpoint != "" {
		url = cfg.Endpoint
	}
	return &Client{
		cfg:        cfg,
		url:        url,
		httpClient: httpClient,
		logger:     logger,
	}
}

type merchantAuthentication struct {
	Name           string `json:"name"`
	TransactionKey string `json:"transactionKey"`
}

type creditCard struct {
	CardNumber     string `json:"cardNumber"`
	ExpirationDate string `json:"expirationDate"`
	CardCode       string `json:"cardCode"`
}

type bankAccount struct {
	AccountType   string `json:"accountType"`
	RoutingNumber string `json:"routingNumber"`
	AccountNumber string `json:"accountNumber"`
	NameOnAccount string `json:"nameOnAccount"`
}

type paymentBlock struct {
	CreditCard  *creditCard  `json:"creditCard,omitempty"`
	BankAccount *bankAccount `json:"bankAccount,omitempty"`
}

type orderBlock struct {
	InvoiceNumber string `json:"invoiceNumber"`
}

type transactionRequest struct {
	TransactionType string       `json:"transactionType"`
	Amount          string       `json:"amount"`
	Payment         paymentBlock `json:"payment"`
	Order           orderBlock   `json:"order"`
}

type createTransactionRequest struct {
	MerchantAuthentication merchantAuthentication `json:"merchantAuthentication"`
	TransactionRequest     transactionRequest     `json:"transactionRequest"`
}

type chargeEnvelope struct {
	CreateTransactionRequest createTransactionRequest `json:"createTransactionRequest"`
}

// ChargeCard authorizes and captures amount against a credit card. The
// amount must be the authoritative due amount read from the order store
// immediately before the call; callers never pass client-supplied amounts.
func (c *Client) ChargeCard(ctx context.Context, amount decimal.Decimal, card domain.Card, orderRef string) (domain.ChargeResult, error) {
	payment := paymentBlock{
		CreditCard: &creditCard{
			CardNumber:     card.Number,
			ExpirationDate: card.ExpirationDate,
			CardCode:       card.CVV,
		},
	}
	return c.submit(ctx, amount, payment, orderRef)
}

// ChargeBankDebit authorizes and captures amount against a bank account.
func (c *Client) ChargeBankDebit(ctx context.Context, amount decimal.Decimal, bank domain.BankDebit, orderRef string) (domain.ChargeResult, error) {
	payment := paymentBlock{
		BankAccount: &bankAccount{
			AccountType:   bank.AccountType,
			RoutingNumber: bank.RoutingNumber,
			AccountNumber: bank.AccountNumber,
			NameOnAccount: bank.NameOnAccount,
		},
	}
	return c.submit(ctx, amount, payment, orderRef)
}

func (c *Client) submit(ctx context.Context, amount decimal.Decimal, payment paymentBlock, orderRef string) (domain.ChargeResult, error) {
	if c.cfg.Sandbox && payment.CreditCard != nil {
		if result, ok := c.mockResult(payment.CreditCard.CardNumber, orderRef); ok {
			return result, nil
		}
	}

	envelope := chargeEnvelope{
		CreateTransactionRequest: createTransactionRequest{
			MerchantAuthentication: merchantAuthentication{
				Name:           c.cfg.LoginID,
				TransactionKey: c.cfg.TransactionKey,
			},
			TransactionRequest: transactionRequest{
				TransactionType: "authCaptureTransaction",
				Amount:          amount.StringFixed(2),
				Payment:         payment,
				Order:           orderBlock{InvoiceNumber: orderRef},
			},
		},
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return domain.ChargeResult{}, fmt.Errorf("marshal charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return domain.ChargeResult{}, fmt.Errorf("create charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ChargeResult{}, fmt.Errorf("submit charge for order %s: %w", orderRef, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ChargeResult{}, fmt.Errorf("read charge response for order %s: %w", orderRef, err)
	}

	// The gateway answers 200 for declines and most errors; anything else is
	// a transport-level failure.
	if resp.StatusCode != http.StatusOK {
		return domain.ChargeResult{}, fmt.Errorf("gateway returned status %d for order %s", resp.StatusCode, orderRef)
	}

	return Classify(body), nil
}

func (c *Client) mockResult(cardNumber, orderRef string) (domain.ChargeResult, bool) {
	switch cardNumber {
	case TestCardApproved:
		c.logger.Info("sandbox mock approval", "order_ref", orderRef)
		return domain.ChargeResult{
			Outcome:       domain.OutcomeApproved,
			TransactionID: mockTransactionID(),
			AuthCode:      "MOCK01",
			Message:       msgApproved,
		}, true
	case TestCardDeclined:
		c.logger.Info("sandbox mock decline", "order_ref", orderRef)
		return domain.ChargeResult{
			Outcome: domain.OutcomeDeclined,
			Message: msgDeclined,
		}, true
	}
	return domain.ChargeResult{}, false
}

func mockTransactionID() string {
	return "MOCK-" + strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
}
