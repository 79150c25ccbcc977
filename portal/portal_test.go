package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/payportal/pkg/domain"
	"github.com/tendant/payportal/pkg/lockout"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func testConfig() Config {
	return Config{
		JWTSecret:        "portal-test-secret-at-least-32-bytes",
		MFAEncryptionKey: testKey,
		InsecureCookie:   true,
		Logger:           slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, "JWTSecret is required"},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "at least 32 characters"},
		{"short key", func(c *Config) { c.MFAEncryptionKey = []byte("nope") }, "32 bytes"},
		{"zero lockout", func(c *Config) { c.Lockout = &lockout.Policy{Threshold: 0, Duration: time.Minute} }, "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := validateConfig(&cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	applyDefaults(&cfg)

	assert.Equal(t, "payportal", cfg.JWTIssuer)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.PendingMFATTL)
	assert.Equal(t, "PayPortal", cfg.MFAIssuer)
	require.NotNil(t, cfg.Lockout)
	assert.Equal(t, lockout.DefaultPolicy(), *cfg.Lockout)
	assert.NotNil(t, cfg.Logger)
}

func TestNew_MissingTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	query := regexp.QuoteMeta("FROM information_schema.tables")
	mock.ExpectQuery(query).WithArgs("users").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("users"))
	mock.ExpectQuery(query).WithArgs("payments").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}))

	cfg := testConfig()
	cfg.DB = db
	_, err = New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing table 'payments'")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_SchemaPresent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	query := regexp.QuoteMeta("FROM information_schema.tables")
	for _, table := range []string{"users", "payments"} {
		mock.ExpectQuery(query).WithArgs(table).
			WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow(table))
	}

	cfg := testConfig()
	cfg.DB = db
	p, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, p.Handler())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPortal_InMemory(t *testing.T) {
	p, err := New(context.Background(), testConfig())
	require.NoError(t, err)

	rec := postJSON(t, p.Handler(), "/v1/auth/register", map[string]any{
		"full_name":      "Thandi Nkosi",
		"id_number":      "1234567890123",
		"account_number": "123456",
		"password":       "Aa1!aaaa",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = postJSON(t, p.Handler(), "/v1/auth/login", map[string]any{
		"account_number": "123456",
		"password":       "Aa1!aaaa",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var session struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.NotEmpty(t, session.AccessToken)

	// The embedding program's own routes see the same principal.
	var got domain.Principal
	protected := p.AuthMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := GetPrincipal(r)
		require.True(t, ok)
		got = principal
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/statements", nil)
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	out := httptest.NewRecorder()
	protected.ServeHTTP(out, req)

	assert.Equal(t, http.StatusNoContent, out.Code)
	assert.Equal(t, domain.RoleCustomer, got.Role)
	assert.Equal(t, "123456", got.AccountNumber)

	req = httptest.NewRequest(http.MethodGet, "/statements", nil)
	out = httptest.NewRecorder()
	protected.ServeHTTP(out, req)
	assert.Equal(t, http.StatusUnauthorized, out.Code)
}
