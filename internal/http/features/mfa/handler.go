package mfa

import (
	"log/slog"
	"net/http"

	"github.com/tendant/payportal/internal/http/middleware"
	"github.com/tendant/payportal/internal/httputil"
	"github.com/tendant/payportal/pkg/auth"
	"github.com/tendant/payportal/pkg/domain"
	"github.com/tendant/payportal/pkg/validate"
)

// Handler handles MFA enrollment for the signed-in user.
type Handler struct {
	logger     *slog.Logger
	mfaService *auth.MFAService
	validator  *validate.Validator
}

// NewHandler creates a new MFA handler
func NewHandler(logger *slog.Logger, mfaService *auth.MFAService, validator *validate.Validator) *Handler {
	return &Handler{
		logger:     logger,
		mfaService: mfaService,
		validator:  validator,
	}
}

// VerifyRequest represents the request body for confirming enrollment
type VerifyRequest struct {
	Code string `json:"code" validate:"required,len=6,digits"`
}

// StatusResponse represents the response body for MFA status
type StatusResponse struct {
	Status  string `json:"status"`
	Enabled bool   `json:"enabled"`
}

// Setup handles POST /v1/me/mfa/setup
func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	setup, err := h.mfaService.Setup(r.Context(), principal)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, setup)
}

// Verify handles POST /v1/me/mfa/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req VerifyRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	if err := h.mfaService.Confirm(r.Context(), principal, req.Code); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, StatusResponse{
		Status:  domain.MFAStatusEnabled.String(),
		Enabled: true,
	})
}

// Status handles GET /v1/me/mfa/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	status, err := h.mfaService.Status(r.Context(), principal)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, StatusResponse{
		Status:  status.String(),
		Enabled: status == domain.MFAStatusEnabled,
	})
}
