package payments

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/payportal/internal/http/middleware"
	"github.com/tendant/payportal/internal/httputil"
	"github.com/tendant/payportal/pkg/domain"
	"github.com/tendant/payportal/pkg/payment"
)

// Handler handles payment endpoints.
type Handler struct {
	logger   *slog.Logger
	payments *payment.Service
}

// NewHandler creates a new payments handler.
func NewHandler(logger *slog.Logger, payments *payment.Service) *Handler {
	return &Handler{
		logger:   logger,
		payments: payments,
	}
}

// CreateRequest represents a payment submission. Amount may be sent as a JSON
// number or a numeric string.
type CreateRequest struct {
	Amount       json.Number `json:"amount"`
	Currency     string      `json:"currency"`
	Provider     string      `json:"provider"`
	PayeeAccount string      `json:"payee_account"`
	SWIFTCode    string      `json:"swift_code"`
}

// ListResponse wraps a list of payments.
type ListResponse struct {
	Scope    payment.Scope        `json:"scope"`
	Payments []domain.PaymentView `json:"payments"`
}

// Create handles POST /v1/payments
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	p, err := h.payments.Create(r.Context(), principal, payment.CreateInput{
		Amount:       req.Amount.String(),
		Currency:     req.Currency,
		Provider:     req.Provider,
		PayeeAccount: req.PayeeAccount,
		SWIFTCode:    req.SWIFTCode,
	})
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, p.View())
}

// List handles GET /v1/payments?scope=mine|all|pending
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	scope, err := payment.ParseScope(r.URL.Query().Get("scope"), principal.Role)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	list, err := h.payments.List(r.Context(), principal, scope)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	views := make([]domain.PaymentView, 0, len(list))
	for _, p := range list {
		views = append(views, p.View())
	}
	httputil.JSON(w, http.StatusOK, ListResponse{Scope: scope, Payments: views})
}

// Get handles GET /v1/payments/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.withPayment(w, r, h.payments.Get)
}

// Verify handles POST /v1/payments/{id}/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	h.withPayment(w, r, h.payments.Verify)
}

// Complete handles POST /v1/payments/{id}/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.withPayment(w, r, h.payments.Complete)
}

type paymentAction func(ctx context.Context, caller domain.Principal, id uuid.UUID) (*domain.Payment, error)

func (h *Handler) withPayment(w http.ResponseWriter, r *http.Request, action paymentAction) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// A malformed id cannot name an existing payment.
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, h.logger, domain.ErrPaymentNotFound)
		return
	}

	p, err := action(r.Context(), principal, id)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, p.View())
}
