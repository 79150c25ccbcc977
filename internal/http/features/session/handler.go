package session

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/payportal/internal/httputil"
	"github.com/tendant/payportal/pkg/auth"
	"github.com/tendant/payportal/pkg/domain"
	"github.com/tendant/payportal/pkg/validate"
)

// Handler handles registration, login and logout.
type Handler struct {
	logger       *slog.Logger
	accounts     *auth.AccountService
	login        *auth.LoginService
	sessions     *auth.SessionService
	validator    *validate.Validator
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new session handler.
func NewHandler(
	logger *slog.Logger,
	accounts *auth.AccountService,
	login *auth.LoginService,
	sessions *auth.SessionService,
	validator *validate.Validator,
	cookieConfig httputil.CookieConfig,
) *Handler {
	return &Handler{
		logger:       logger,
		accounts:     accounts,
		login:        login,
		sessions:     sessions,
		validator:    validator,
		cookieConfig: cookieConfig,
	}
}

// LoginRequest represents a login request. Customers send account_number,
// staff send email.
type LoginRequest struct {
	AccountNumber string `json:"account_number" validate:"required_without=Email,excluded_with=Email,omitempty,min=6,max=20,digits"`
	Email         string `json:"email" validate:"required_without=AccountNumber,omitempty,email,max=254"`
	Password      string `json:"password" validate:"required,max=128"`
	MFACode       string `json:"mfa_code" validate:"omitempty,len=6,digits"`
}

func (req LoginRequest) identifier() domain.Identifier {
	if req.AccountNumber != "" {
		return domain.AccountNumberIdentifier(req.AccountNumber)
	}
	return domain.EmailIdentifier(auth.NormalizeEmail(req.Email))
}

// MFAVerifyRequest completes a login that stopped at the second factor.
type MFAVerifyRequest struct {
	PendingToken string `json:"pending_token" validate:"required"`
	Code         string `json:"code" validate:"required,len=6,digits"`
}

// SessionResponse is returned when a session is issued. The same token is
// also set as the session cookie.
type SessionResponse struct {
	RequiresMFA bool             `json:"requires_mfa"`
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	ExpiresIn   int              `json:"expires_in"`
	ExpiresAt   time.Time        `json:"expires_at"`
	User        *domain.UserView `json:"user,omitempty"`
}

// PendingMFAResponse is returned when the password was right and a TOTP code is still needed.
type PendingMFAResponse struct {
	RequiresMFA  bool      `json:"requires_mfa"`
	PendingToken string    `json:"pending_token"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Register creates a customer account and signs it in.
// POST /v1/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterInput
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	user, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	session, err := h.sessions.IssueSession(user)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	h.writeSession(w, http.StatusCreated, &domain.LoginResult{User: user, Session: session})
}

// Login authenticates with a password and, when enrolled, a TOTP code.
// POST /v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	result, err := h.login.Login(r.Context(), auth.LoginInput{
		Identifier: req.identifier(),
		Password:   req.Password,
		MFACode:    req.MFACode,
	})
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	if result.RequiresMFA() {
		httputil.JSON(w, http.StatusOK, PendingMFAResponse{
			RequiresMFA:  true,
			PendingToken: result.PendingMFA.Token,
			ExpiresIn:    result.PendingMFA.ExpiresIn,
			ExpiresAt:    result.PendingMFA.ExpiresAt,
		})
		return
	}

	h.writeSession(w, http.StatusOK, result)
}

// VerifyMFA exchanges a pending-MFA token and a TOTP code for a session.
// POST /v1/auth/mfa/verify
func (h *Handler) VerifyMFA(w http.ResponseWriter, r *http.Request) {
	var req MFAVerifyRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	result, err := h.login.CompleteMFA(r.Context(), req.PendingToken, req.Code)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	h.writeSession(w, http.StatusOK, result)
}

// Logout clears the session cookie. Tokens are stateless, so a copied token
// stays valid until it expires.
// POST /v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	httputil.ClearSessionCookie(w, h.cookieConfig)
	w.WriteHeader(http.StatusNoContent)
}

// writeSession returns the token in the body and sets it as the session cookie.
func (h *Handler) writeSession(w http.ResponseWriter, status int, result *domain.LoginResult) {
	resp := SessionResponse{
		AccessToken: result.Session.AccessToken,
		TokenType:   result.Session.TokenType,
		ExpiresIn:   result.Session.ExpiresIn,
		ExpiresAt:   result.Session.ExpiresAt,
	}
	if result.User != nil {
		view := result.User.View()
		resp.User = &view
	}

	httputil.SetSessionCookie(w, result.Session.AccessToken, h.sessions.SessionTTL(), h.cookieConfig)
	httputil.JSON(w, status, resp)
}
