package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/casteele/payportal/internal/domain"
	"github.com/casteele/payportal/internal/payment"
)

type Handler struct {
	orchestrator *payment.Orchestrator
	logger       *slog.Logger
}

func NewHandler(orchestrator *payment.Orchestrator, logger *slog.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

type lookupRequest struct {
	OrderNumber string `json:"orderNumber"`
	Email       string `json:"email"`
}

func (h *Handler) HandleLookupOrder(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Order number and email are required.")
		return
	}

	if req.OrderNumber == "" || req.Email == "" {
		h.writeError(w, http.StatusBadRequest, "Order number and email are required.")
		return
	}

	summary, err := h.orchestrator.VerifyOrderForPayment(r.Context(), req.OrderNumber, req.Email)
	if err != nil {
		h.writeVerificationError(w, r, err, "order lookup failed")
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

type processPaymentRequest struct {
	OrderNumber    string          `json:"orderNumber"`
	Email          string          `json:"email"`
	PaymentMethod  string          `json:"paymentMethod"`
	PaymentDetails json.RawMessage `json:"paymentDetails"`
}

type processPaymentResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
}

func (h *Handler) HandleProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req processPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "All payment fields are required.")
		return
	}

	if req.OrderNumber == "" || req.Email == "" || req.PaymentMethod == "" || len(req.PaymentDetails) == 0 {
		h.writeError(w, http.StatusBadRequest, "All payment fields are required.")
		return
	}

	submit := payment.SubmitRequest{
		OrderNumber: req.OrderNumber,
		Email:       req.Email,
		Method:      domain.PaymentMethod(req.PaymentMethod),
	}

	// Input validation happens here, before any external call is made.
	switch submit.Method {
	case domain.MethodCard:
		var card domain.Card
		if err := json.Unmarshal(req.PaymentDetails, &card); err != nil ||
			card.Number == "" || card.ExpirationDate == "" || card.CVV == "" {
			h.writeError(w, http.StatusBadRequest, "All payment fields are required.")
			return
		}
		submit.Card = &card
	case domain.MethodBankDebit:
		var bank domain.BankDebit
		if err := json.Unmarshal(req.PaymentDetails, &bank); err != nil ||
			bank.RoutingNumber == "" || bank.AccountNumber == "" || bank.NameOnAccount == "" || bank.AccountType == "" {
			h.writeError(w, http.StatusBadRequest, "All payment fields are required.")
			return
		}
		submit.Bank = &bank
	default:
		h.writeError(w, http.StatusBadRequest, "Invalid payment method.")
		return
	}

	receipt, err := h.orchestrator.SubmitPayment(r.Context(), submit)
	if err != nil {
		var gwErr *payment.GatewayError
		switch {
		case errors.As(err, &gwErr):
			h.writeError(w, http.StatusBadRequest, gwErr.Message)
		case errors.Is(err, payment.ErrPaymentInProgress):
			h.writeError(w, http.StatusConflict, "A payment for this order is already in progress.")
		case errors.Is(err, payment.ErrUnsupportedMethod):
			h.writeError(w, http.StatusBadRequest, "Invalid payment method.")
		default:
			h.writeVerificationError(w, r, err, "payment processing failed")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, processPaymentResponse{
		Success:       true,
		TransactionID: receipt.TransactionID,
	})
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeVerificationError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	switch {
	case errors.Is(err, payment.ErrOrderNotFound):
		h.writeError(w, http.StatusNotFound, "Order not found. Please check your order number and email.")
	case errors.Is(err, payment.ErrNotPayable):
		h.writeError(w, http.StatusBadRequest, "This order is not eligible for payment.")
	case errors.Is(err, payment.ErrNothingDue):
		h.writeError(w, http.StatusBadRequest, "This order has no balance due.")
	default:
		h.logger.Error(logMsg, "error", err, "path", r.URL.Path)
		h.writeError(w, http.StatusInternalServerError, "Unable to look up order. Please try again.")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
