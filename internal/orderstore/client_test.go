package orderstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/casteele/payportal/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_LookupOrder(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/V1/orders" {
				t.Errorf("expected /V1/orders, got %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
				t.Errorf("expected bearer token, got %q", got)
			}
			q := r.URL.Query()
			if q.Get("searchCriteria[filterGroups][0][filters][0][field]") != "increment_id" {
				t.Errorf("expected increment_id filter, got %v", q)
			}
			if q.Get("searchCriteria[filterGroups][0][filters][0][value]") != "1000000123" {
				t.Errorf("expected order number filter, got %v", q)
			}
			if q.Get("searchCriteria[filterGroups][0][filters][0][conditionType]") != "eq" {
				t.Errorf("expected eq condition, got %v", q)
			}

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"items":[{
				"entity_id": 42,
				"increment_id": "1000000123",
				"customer_email": "buyer@example.com",
				"status": "processing",
				"grand_total": 99.95,
				"total_due": 42.50,
				"items": [
					{"item_id": 7, "name": "Widget", "sku": "W-1", "qty_ordered": 5, "qty_invoiced": 3, "price": 9.99, "row_total": 49.95}
				]
			}]}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "secret-token", server.Client(), discardLogger())

		order, err := client.LookupOrder(context.Background(), "1000000123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order == nil {
			t.Fatal("expected order, got nil")
		}
		if order.EntityID != 42 || order.IncrementID != "1000000123" {
			t.Errorf("unexpected order identity: %+v", order)
		}
		if order.Status != domain.OrderStatusProcessing {
			t.Errorf("expected processing status, got %s", order.Status)
		}
		if order.TotalDue.StringFixed(2) != "42.50" {
			t.Errorf("expected total due 42.50, got %s", order.TotalDue)
		}
		if len(order.Items) != 1 || order.Items[0].QtyInvoiced != 3 {
			t.Errorf("unexpected items: %+v", order.Items)
		}
	})

	t.Run("not found is nil without error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"items":[]}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "secret-token", server.Client(), discardLogger())

		order, err := client.LookupOrder(context.Background(), "9999999999")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order != nil {
			t.Errorf("expected nil order, got %+v", order)
		}
	})

	t.Run("server error wraps ErrLookup", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewClient(server.URL, "secret-token", server.Client(), discardLogger())

		_, err := client.LookupOrder(context.Background(), "1000000123")
		if !errors.Is(err, ErrLookup) {
			t.Fatalf("expected ErrLookup, got %v", err)
		}
	})

	t.Run("transport error wraps ErrLookup", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1", "secret-token", &http.Client{}, discardLogger())

		_, err := client.LookupOrder(context.Background(), "1000000123")
		if !errors.Is(err, ErrLookup) {
			t.Fatalf("expected ErrLookup, got %v", err)
		}
	})
}

func TestInvoiceableItems(t *testing.T) {
	items := []domain.LineItem{
		{ItemID: 1, QtyOrdered: 5, QtyInvoiced: 3},
		{ItemID: 2, QtyOrdered: 5, QtyInvoiced: 5},
		{ItemID: 3, QtyOrdered: 2, QtyInvoiced: 0},
	}

	out := InvoiceableItems(items)

	if len(out) != 2 {
		t.Fatalf("expected 2 invoiceable items, got %d", len(out))
	}
	if out[0].OrderItemID != 1 || out[0].Qty != 2 {
		t.Errorf("expected item 1 qty 2, got %+v", out[0])
	}
	if out[1].OrderItemID != 3 || out[1].Qty != 2 {
		t.Errorf("expected item 3 qty 2, got %+v", out[1])
	}
}

func TestClient_CreateInvoice(t *testing.T) {
	t.Run("posts computed quantities and transaction comment", func(t *testing.T) {
		var captured invoiceRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/V1/order/42/invoice" {
				t.Errorf("expected /V1/order/42/invoice, got %s", r.URL.Path)
			}
			if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
				t.Fatalf("failed to decode request: %v", err)
			}
			_, _ = w.Write([]byte(`123`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "secret-token", server.Client(), discardLogger())

		items := []domain.LineItem{
			{ItemID: 7, QtyOrdered: 5, QtyInvoiced: 3},
			{ItemID: 8, QtyOrdered: 1, QtyInvoiced: 1},
		}
		if err := client.CreateInvoice(context.Background(), 42, items, "60198234567"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !captured.Capture {
			t.Error("expected capture:true")
		}
		if len(captured.Items) != 1 || captured.Items[0].OrderItemID != 7 || captured.Items[0].Qty != 2 {
			t.Errorf("unexpected invoice items: %+v", captured.Items)
		}
		if want := "Payment received via Payment Portal. Authorize.net Transaction ID: 60198234567"; captured.Comment.Comment != want {
			t.Errorf("unexpected comment: %q", captured.Comment.Comment)
		}
	})

	t.Run("4xx wraps ErrInvoice", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"The order does not allow an invoice to be created."}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "secret-token", server.Client(), discardLogger())

		err := client.CreateInvoice(context.Background(), 42, nil, "60198234567")
		if !errors.Is(err, ErrInvoice) {
			t.Fatalf("expected ErrInvoice, got %v", err)
		}
	})
}

func TestClient_AddOrderComment(t *testing.T) {
	t.Run("posts status history", func(t *testing.T) {
		var captured commentRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/V1/orders/42/comments" {
				t.Errorf("expected /V1/orders/42/comments, got %s", r.URL.Path)
			}
			if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
				t.Fatalf("failed to decode request: %v", err)
			}
			_, _ = w.Write([]byte(`true`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "secret-token", server.Client(), discardLogger())

		if err := client.AddOrderComment(context.Background(), 42, "note for operators"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if captured.StatusHistory.Comment != "note for operators" {
			t.Errorf("unexpected comment: %q", captured.StatusHistory.Comment)
		}
		if captured.StatusHistory.IsVisibleOnFront != 0 {
			t.Error("comment must not be visible on front")
		}
	})

	t.Run("failure wraps ErrComment", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewClient(server.URL, "secret-token", server.Client(), discardLogger())

		err := client.AddOrderComment(context.Background(), 42, "note")
		if !errors.Is(err, ErrComment) {
			t.Fatalf("expected ErrComment, got %v", err)
		}
	})
}
