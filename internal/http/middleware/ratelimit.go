package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/tendant/payportal/internal/config"
	"github.com/tendant/payportal/internal/httputil"
)

// Rate limiter groups.
const (
	LimitAuth    = "auth"
	LimitMFA     = "mfa"
	LimitPayment = "payment"
)

// RateLimitConfig holds rate limiting configuration for a specific endpoint type.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Logger   *slog.Logger
}

// RateLimit creates an IP-based rate limiter middleware with logging.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				cfg.Logger.Warn("rate limit exceeded",
					"ip", r.RemoteAddr,
					"path", r.URL.Path,
					"method", r.Method,
				)
			}
			httputil.Error(w, http.StatusTooManyRequests, "rate limit exceeded. please try again later")
		}),
	)
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// CreateRateLimiters builds one limiter per group: credential endpoints,
// MFA code endpoints and payment submission.
func CreateRateLimiters(cfg config.RateLimitConfig, logger *slog.Logger) map[string]func(http.Handler) http.Handler {
	if !cfg.Enabled {
		noOp := NoRateLimit()
		return map[string]func(http.Handler) http.Handler{
			LimitAuth:    noOp,
			LimitMFA:     noOp,
			LimitPayment: noOp,
		}
	}

	return map[string]func(http.Handler) http.Handler{
		LimitAuth: RateLimit(RateLimitConfig{
			Requests: cfg.AuthRequestsPerMinute,
			Window:   time.Duration(cfg.AuthWindowMinutes) * time.Minute,
			Logger:   logger,
		}),
		LimitMFA: RateLimit(RateLimitConfig{
			Requests: cfg.MFARequestsPerWindow,
			Window:   time.Duration(cfg.MFAWindowMinutes) * time.Minute,
			Logger:   logger,
		}),
		LimitPayment: RateLimit(RateLimitConfig{
			Requests: cfg.PaymentRequestsPerMinute,
			Window:   time.Duration(cfg.PaymentWindowMinutes) * time.Minute,
			Logger:   logger,
		}),
	}
}
