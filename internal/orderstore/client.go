package orderstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/casteele/payportal/internal/domain"
)

var (
	// ErrLookup marks transport or parse failures during order lookup,
	// distinct from a legitimate not-found result (nil order, nil error).
	ErrLookup = errors.New("order lookup failed")
	// ErrInvoice marks a failed invoice creation after a successful charge.
	ErrInvoice = errors.New("invoice creation failed")
	// ErrComment marks a failed audit comment write. Callers treat it as
	// best-effort and never let it roll back or retry the invoice step.
	ErrComment = errors.New("order comment failed")
)

// Client talks to the order store's REST API. The order store is the sole
// system of record; this client never caches anything across calls.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL, token string, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
		logger:     logger,
	}
}

type lookupResponse struct {
	Items []domain.Order `json:"items"`
}

// LookupOrder fetches the order whose increment id exactly matches
// orderNumber. A missing order is (nil, nil); failures wrap ErrLookup.
func (c *Client) LookupOrder(ctx context.Context, orderNumber string) (*domain.Order, error) {
	query := url.Values{}
	query.Set("searchCriteria[filterGroups][0][filters][0][field]", "increment_id")
	query.Set("searchCriteria[filterGroups][0][filters][0][value]", orderNumber)
	query.Set("searchCriteria[filterGroups][0][filters][0][conditionType]", "eq")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/V1/orders?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrLookup, err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLookup, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: order store returned status %d", ErrLookup, resp.StatusCode)
	}

	var result lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrLookup, err)
	}

	if len(result.Items) == 0 {
		c.logger.Debug("order not found", "order_number", orderNumber)
		return nil, nil
	}
	return &result.Items[0], nil
}

type invoiceItem struct {
	OrderItemID int64 `json:"order_item_id"`
	Qty         int   `json:"qty"`
}

type invoiceComment struct {
	Comment          string `json:"comment"`
	IsVisibleOnFront int    `json:"is_visible_on_front"`
}

type invoiceRequest struct {
	Capture bool           `json:"capture"`
	Items   []invoiceItem  `json:"items"`
	Comment invoiceComment `json:"comment"`
}

// InvoiceableItems computes the per-line quantities still awaiting invoice:
// ordered minus already invoiced, excluding lines where that difference is
// zero or negative.
func InvoiceableItems(items []domain.LineItem) []invoiceItem {
	var out []invoiceItem
	for _, item := range items {
		qty := item.QtyOrdered - item.QtyInvoiced
		if qty <= 0 {
			continue
		}
		out = append(out, invoiceItem{OrderItemID: item.ItemID, Qty: qty})
	}
	return out
}

// CreateInvoice records a captured invoice against the order, referencing
// the gateway transaction id. Failures wrap ErrInvoice.
func (c *Client) CreateInvoice(ctx context.Context, orderID int64, items []domain.LineItem, transactionID string) error {
	payload := invoiceRequest{
		Capture: true,
		Items:   InvoiceableItems(items),
		Comment: invoiceComment{
			Comment: fmt.Sprintf("Payment received via Payment Portal. Authorize.net Transaction ID: %s", transactionID),
		},
	}

	if err := c.post(ctx, fmt.Sprintf("/V1/order/%d/invoice", orderID), payload); err != nil {
		return fmt.Errorf("%w: %w", ErrInvoice, err)
	}
	return nil
}

type commentRequest struct {
	StatusHistory invoiceComment `json:"statusHistory"`
}

// AddOrderComment appends a free-text audit note to the order's history.
// Failures wrap ErrComment.
func (c *Client) AddOrderComment(ctx context.Context, orderID int64, comment string) error {
	payload := commentRequest{
		StatusHistory: invoiceComment{Comment: comment},
	}

	if err := c.post(ctx, fmt.Sprintf("/V1/orders/%d/comments", orderID), payload); err != nil {
		return fmt.Errorf("%w: %w", ErrComment, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("order store returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
}
