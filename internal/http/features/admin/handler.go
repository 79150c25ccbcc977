package admin

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/payportal/internal/http/middleware"
	"github.com/tendant/payportal/internal/httputil"
	"github.com/tendant/payportal/pkg/auth"
	"github.com/tendant/payportal/pkg/domain"
)

// Handler handles administrator endpoints.
type Handler struct {
	logger   *slog.Logger
	accounts *auth.AccountService
}

// NewHandler creates a new admin handler.
func NewHandler(logger *slog.Logger, accounts *auth.AccountService) *Handler {
	return &Handler{
		logger:   logger,
		accounts: accounts,
	}
}

// UpdateUserRequest changes a user's access. Omitted fields are left unchanged.
type UpdateUserRequest struct {
	IsActive *bool        `json:"is_active,omitempty"`
	Role     *domain.Role `json:"role,omitempty"`
}

// CreateStaff handles POST /v1/admin/staff
func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req auth.StaffInput
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	user, err := h.accounts.CreateStaff(r.Context(), principal, req)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, user.View())
}

// UpdateUser handles PATCH /v1/admin/users/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, h.logger, domain.ErrUserNotFound)
		return
	}

	var req UpdateUserRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	user, err := h.accounts.UpdateUser(r.Context(), principal, id, domain.AccessUpdate{
		IsActive: req.IsActive,
		Role:     req.Role,
	})
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, user.View())
}
