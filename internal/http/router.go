package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tendant/payportal/internal/config"
	"github.com/tendant/payportal/internal/http/features/admin"
	"github.com/tendant/payportal/internal/http/features/me"
	"github.com/tendant/payportal/internal/http/features/mfa"
	"github.com/tendant/payportal/internal/http/features/payments"
	"github.com/tendant/payportal/internal/http/features/session"
	"github.com/tendant/payportal/internal/http/middleware"
	"github.com/tendant/payportal/internal/httputil"
	"github.com/tendant/payportal/pkg/auth"
	"github.com/tendant/payportal/pkg/domain"
	"github.com/tendant/payportal/pkg/payment"
	"github.com/tendant/payportal/pkg/validate"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *slog.Logger
	AccountService  *auth.AccountService
	LoginService    *auth.LoginService
	SessionService  *auth.SessionService
	MFAService      *auth.MFAService
	PaymentService  *payment.Service
	Validator       *validate.Validator
	RateLimitConfig config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	CORS            config.CORSConfig
	Cookie          httputil.CookieConfig
	MaxRequestBytes int64
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	if len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           cfg.CORS.MaxAge,
		}))
	}
	if cfg.MaxRequestBytes > 0 {
		r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBytes))
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)
	requireAuth := middleware.Auth(cfg.SessionService)
	reviewers := middleware.RequireRole(cfg.Logger, domain.RoleEmployee, domain.RoleAdmin)

	// Registration, login and the second login step
	sessionHandler := session.NewHandler(
		cfg.Logger,
		cfg.AccountService,
		cfg.LoginService,
		cfg.SessionService,
		cfg.Validator,
		cfg.Cookie,
	)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters[middleware.LimitAuth])
		r.Post("/v1/auth/register", sessionHandler.Register)
		r.Post("/v1/auth/login", sessionHandler.Login)
	})
	r.With(rateLimiters[middleware.LimitMFA]).Post("/v1/auth/mfa/verify", sessionHandler.VerifyMFA)
	r.Post("/v1/auth/logout", sessionHandler.Logout)

	// Profile and MFA enrollment
	meHandler := me.NewHandler(cfg.Logger, cfg.AccountService)
	mfaHandler := mfa.NewHandler(cfg.Logger, cfg.MFAService, cfg.Validator)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/v1/me", meHandler.GetMe)
		r.Get("/v1/me/mfa/status", mfaHandler.Status)
		r.Post("/v1/me/mfa/setup", mfaHandler.Setup)
		r.With(rateLimiters[middleware.LimitMFA]).Post("/v1/me/mfa/verify", mfaHandler.Verify)
	})

	// Payments
	paymentsHandler := payments.NewHandler(cfg.Logger, cfg.PaymentService)
	r.Route("/v1/payments", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", paymentsHandler.List)
		r.With(
			middleware.RequireRole(cfg.Logger, domain.RoleCustomer),
			rateLimiters[middleware.LimitPayment],
		).Post("/", paymentsHandler.Create)
		r.Get("/{id}", paymentsHandler.Get)
		r.With(reviewers).Post("/{id}/verify", paymentsHandler.Verify)
		r.With(reviewers).Post("/{id}/complete", paymentsHandler.Complete)
	})

	// Administration
	adminHandler := admin.NewHandler(cfg.Logger, cfg.AccountService)
	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(middleware.RequireRole(cfg.Logger, domain.RoleAdmin))
		r.Post("/staff", adminHandler.CreateStaff)
		r.Patch("/users/{id}", adminHandler.UpdateUser)
	})

	return r
}
