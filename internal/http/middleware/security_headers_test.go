package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tendant/payportal/internal/config"
	"github.com/tendant/payportal/internal/httputil"
)

// apiHeaders loads the header profile the server runs with by default.
func apiHeaders(t *testing.T) config.SecurityHeadersConfig {
	t.Helper()
	t.Setenv("JWT_SECRET", "middleware-test-secret-at-least-32-bytes")
	t.Setenv("MFA_ENCRYPTION_KEY", "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	for _, key := range []string{
		"SECURITY_HEADERS_ENABLED", "SECURITY_CSP", "SECURITY_HSTS_MAX_AGE", "SECURITY_FRAME_OPTIONS",
		"SECURITY_CONTENT_TYPE_OPTIONS", "SECURITY_XSS_PROTECTION", "SECURITY_REFERRER_POLICY",
		"SECURITY_PERMISSIONS_POLICY",
	} {
		t.Setenv(key, "")
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg.SecurityHeaders
}

func TestSecurityHeaders_DefaultProfile(t *testing.T) {
	handler := SecurityHeaders(apiHeaders(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, http.StatusUnauthorized, "invalid credentials")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil))

	tests := []struct {
		header string
		want   string
	}{
		{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
		{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
		{"X-Frame-Options", "DENY"},
		{"X-Content-Type-Options", "nosniff"},
		{"X-XSS-Protection", "0"},
		{"Referrer-Policy", "no-referrer"},
		{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
		{"Cache-Control", "no-store"},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			if got := rec.Header().Get(tt.header); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
			}
		})
	}

	// Error responses are covered too.
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSecurityHeaders_NoStoreWithoutOtherHeaders(t *testing.T) {
	cfg := config.SecurityHeadersConfig{Enabled: true}

	handler := SecurityHeaders(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/me", nil))

	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	for _, h := range []string{"Content-Security-Policy", "Strict-Transport-Security", "Permissions-Policy"} {
		if got := rec.Header().Get(h); got != "" {
			t.Errorf("%s = %q, want unset for an empty value", h, got)
		}
	}
}

func TestSecurityHeaders_Disabled(t *testing.T) {
	cfg := apiHeaders(t)
	cfg.Enabled = false

	handler := SecurityHeaders(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if len(rec.Header()) != 0 {
		t.Errorf("headers = %v, want none when disabled", rec.Header())
	}
}
