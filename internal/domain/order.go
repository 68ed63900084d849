package domain

import "github.com/shopspring/decimal"

type OrderStatus string

const (
	OrderStatusOpen       OrderStatus = "open"
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCanceled   OrderStatus = "canceled"
	OrderStatusClosed     OrderStatus = "closed"
	OrderStatusComplete   OrderStatus = "complete"
)

// Terminal reports whether an order in this status can never accept a
// payment, regardless of its remaining balance.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCanceled, OrderStatusClosed, OrderStatusComplete:
		return true
	}
	return false
}

type LineItem struct {
	ItemID      int64           `json:"item_id"`
	Name        string          `json:"name"`
	SKU         string          `json:"sku"`
	QtyOrdered  int             `json:"qty_ordered"`
	QtyInvoiced int             `json:"qty_invoiced"`
	Price       decimal.Decimal `json:"price"`
	RowTotal    decimal.Decimal `json:"row_total"`
}

// Order is a snapshot of the order store's state. It is fetched fresh for
// every lookup and every payment attempt; the due amount and status can
// change between requests, so snapshots are never cached or reused.
type Order struct {
	EntityID      int64           `json:"entity_id"`
	IncrementID   string          `json:"increment_id"`
	CustomerEmail string          `json:"customer_email"`
	Status        OrderStatus     `json:"status"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	TotalDue      decimal.Decimal `json:"total_due"`
	Items         []LineItem      `json:"items"`
}
