package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tendant/payportal/pkg/domain"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error            string               `json:"error"`
	Details          map[string]string    `json:"details,omitempty"`
	RemainingMinutes int                  `json:"remaining_minutes,omitempty"`
	RequiredRoles    []domain.Role        `json:"required_roles,omitempty"`
	CurrentStatus    domain.PaymentStatus `json:"current_status,omitempty"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error writes a JSON error message.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorResponse{Error: msg})
}

// DecodeJSON decodes the request body into dst. On failure it writes the
// error response itself and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	Error(w, http.StatusBadRequest, "invalid request body")
	return false
}

// WriteError maps a service error onto its HTTP status and body. Errors that
// match no known kind are logged and reported as a generic 500.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, body := classify(err)
	if status == http.StatusInternalServerError {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	JSON(w, status, body)
}

func classify(err error) (int, ErrorResponse) {
	var (
		validation *domain.ValidationError
		locked     *domain.AccountLockedError
		authz      *domain.AuthorizationError
		conflict   *domain.StateConflictError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: validation.Fields}

	// Wrong password and wrong code read the same.
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrInvalidMFACode):
		return http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"}
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, ErrorResponse{Error: "invalid or expired token"}

	case errors.As(err, &locked):
		return http.StatusLocked, ErrorResponse{Error: "account locked", RemainingMinutes: locked.RemainingMinutes}
	case errors.Is(err, domain.ErrAccountLocked):
		return http.StatusLocked, ErrorResponse{Error: "account locked"}

	case errors.Is(err, domain.ErrAccountDeactivated):
		return http.StatusForbidden, ErrorResponse{Error: "account deactivated"}
	case errors.As(err, &authz):
		return http.StatusForbidden, ErrorResponse{Error: "forbidden", RequiredRoles: authz.Required}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, ErrorResponse{Error: "forbidden"}

	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "user not found"}
	case errors.Is(err, domain.ErrPaymentNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "payment not found"}

	case errors.As(err, &conflict):
		return http.StatusConflict, ErrorResponse{Error: "payment is not in the required state", CurrentStatus: conflict.Current}
	case errors.Is(err, domain.ErrStateConflict):
		return http.StatusConflict, ErrorResponse{Error: "payment is not in the required state"}
	case errors.Is(err, domain.ErrUserAlreadyExists):
		return http.StatusConflict, ErrorResponse{Error: "user already exists"}
	case errors.Is(err, domain.ErrMFAAlreadyEnabled):
		return http.StatusConflict, ErrorResponse{Error: "MFA is already enabled"}
	case errors.Is(err, domain.ErrMFANotInitiated):
		return http.StatusConflict, ErrorResponse{Error: "MFA setup has not been started"}
	}

	return http.StatusInternalServerError, ErrorResponse{Error: "internal error"}
}
