// Package portal embeds the payment portal API in another Go program.
//
// Setup:
//
//  1. Run migrations/0001_init.sql against your database
//  2. Create a Portal and mount its handler
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/bank?sslmode=disable")
//
//	p, err := portal.New(ctx, portal.Config{
//	    DB:               db,
//	    JWTSecret:        "your-secret-key-at-least-32-chars",
//	    MFAEncryptionKey: key, // 32 bytes
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if migrations haven't been run
//	}
//
//	r := chi.NewRouter()
//	r.Mount("/", p.Handler())
//	http.ListenAndServe(":8080", r)
//
// Leaving DB nil keeps every account and payment in memory, which suits
// tests and demos.
package portal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/tendant/payportal/internal/config"
	httpserver "github.com/tendant/payportal/internal/http"
	"github.com/tendant/payportal/internal/http/middleware"
	"github.com/tendant/payportal/internal/httputil"
	"github.com/tendant/payportal/pkg/auth"
	"github.com/tendant/payportal/pkg/domain"
	"github.com/tendant/payportal/pkg/lockout"
	"github.com/tendant/payportal/pkg/payment"
	"github.com/tendant/payportal/pkg/repository"
	"github.com/tendant/payportal/pkg/validate"
)

// Config holds the configuration for an embedded portal.
type Config struct {
	// DB is the Postgres connection. Nil selects the in-memory store.
	DB *sql.DB

	// JWTSecret signs session and pending-MFA tokens (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the issuer claim in tokens (default: "payportal").
	JWTIssuer string

	// SessionTTL is the lifetime of a session token (default: 24 hours).
	SessionTTL time.Duration

	// PendingMFATTL is the lifetime of a pending-MFA token (default: 10 minutes).
	PendingMFATTL time.Duration

	// MFAEncryptionKey seals TOTP secrets at rest (required, 32 bytes).
	MFAEncryptionKey []byte

	// MFAIssuer is shown in authenticator apps (default: "PayPortal").
	MFAIssuer string

	// Lockout overrides the 5 failures / 15 minutes policy.
	Lockout *lockout.Policy

	// Notifier is told about payment status changes (optional).
	Notifier payment.Notifier

	// CookieDomain scopes the web session cookie (default: host only).
	CookieDomain string

	// InsecureCookie drops the Secure flag, for local development over plain HTTP.
	InsecureCookie bool

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger
}

// Portal is an assembled payment portal.
type Portal struct {
	config   Config
	sessions *auth.SessionService
	accounts *auth.AccountService
	handler  http.Handler
}

// New creates a portal with the given configuration.
// Returns an error if required database tables don't exist.
func New(ctx context.Context, cfg Config) (*Portal, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	var (
		users    auth.UserStore
		payments payment.Store
	)
	if cfg.DB != nil {
		if err := validateSchema(ctx, cfg.DB); err != nil {
			return nil, err
		}
		users = repository.NewUsersRepository(cfg.DB)
		payments = repository.NewPaymentsRepository(cfg.DB)
	} else {
		store := repository.NewMemoryStore()
		users, payments = store.Users(), store.Payments()
	}

	secrets, err := auth.NewSecretBox(cfg.MFAEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("portal: %w", err)
	}

	v := validate.New()
	hasher := auth.NewHasher(auth.HasherConfig{})
	engine := auth.NewTOTPEngine(cfg.MFAIssuer)
	sessions := auth.NewSessionService(auth.SessionConfig{
		JWTSecret:     []byte(cfg.JWTSecret),
		Issuer:        cfg.JWTIssuer,
		SessionTTL:    cfg.SessionTTL,
		PendingMFATTL: cfg.PendingMFATTL,
	})
	policy := auth.NewPasswordPolicy(config.PasswordPolicyConfig{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumber:    true,
		RequireSpecial:   true,
	})
	accounts := auth.NewAccountService(users, hasher, policy, v, true, false, cfg.Logger)

	handler := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:         cfg.Logger,
		AccountService: accounts,
		LoginService:   auth.NewLoginService(users, hasher, engine, secrets, sessions, *cfg.Lockout, cfg.Logger),
		SessionService: sessions,
		MFAService:     auth.NewMFAService(users, engine, secrets, cfg.Logger),
		PaymentService: payment.NewService(payments, v, cfg.Notifier, cfg.Logger),
		Validator:      v,
		SecurityHeaders: config.SecurityHeadersConfig{
			Enabled:            true,
			FrameOptions:       "DENY",
			ContentTypeOptions: "nosniff",
			ReferrerPolicy:     "no-referrer",
		},
		Cookie: httputil.CookieConfig{
			Domain: cfg.CookieDomain,
			Path:   "/",
			Secure: !cfg.InsecureCookie,
		},
		MaxRequestBytes: 1 << 20,
	})

	return &Portal{
		config:   cfg,
		sessions: sessions,
		accounts: accounts,
		handler:  handler,
	}, nil
}

// Handler returns the full API, including /health and the /v1 routes.
func (p *Portal) Handler() http.Handler {
	return p.handler
}

// AuthMiddleware returns middleware that validates session tokens.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(p.AuthMiddleware())
//	    r.Get("/statements", handler)
//	})
func (p *Portal) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(p.sessions)
}

// GetPrincipal extracts the authenticated caller from a request.
// Use after AuthMiddleware.
func GetPrincipal(r *http.Request) (domain.Principal, bool) {
	return middleware.GetPrincipal(r.Context())
}

// BootstrapAdmin creates the first administrator unless the email is taken.
// It reports whether an account was created.
func (p *Portal) BootstrapAdmin(ctx context.Context, admin auth.StaffInput) (bool, error) {
	return p.accounts.BootstrapAdmin(ctx, admin)
}

func validateConfig(cfg *Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("portal: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("portal: JWTSecret must be at least 32 characters")
	}
	if len(cfg.MFAEncryptionKey) != 32 {
		return errors.New("portal: MFAEncryptionKey must be 32 bytes")
	}
	if cfg.Lockout != nil && (cfg.Lockout.Threshold <= 0 || cfg.Lockout.Duration <= 0) {
		return errors.New("portal: Lockout threshold and duration must be positive")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "payportal"
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.PendingMFATTL == 0 {
		cfg.PendingMFATTL = 10 * time.Minute
	}
	if cfg.MFAIssuer == "" {
		cfg.MFAIssuer = "PayPortal"
	}
	if cfg.Lockout == nil {
		policy := lockout.DefaultPolicy()
		cfg.Lockout = &policy
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
}

// validateSchema checks that required database tables exist.
func validateSchema(ctx context.Context, db *sql.DB) error {
	requiredTables := []string{"users", "payments"}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRowContext(ctx, query, table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("portal: missing table '%s' - run migrations first (see migrations/ folder)", table)
		}
		if err != nil {
			return fmt.Errorf("portal: failed to check schema: %w", err)
		}
	}

	return nil
}
