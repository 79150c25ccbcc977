package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/payportal/internal/config"
	httpserver "github.com/tendant/payportal/internal/http"
	"github.com/tendant/payportal/internal/httputil"
	"github.com/tendant/payportal/internal/metrics"
	"github.com/tendant/payportal/internal/notification"
	"github.com/tendant/payportal/pkg/auth"
	"github.com/tendant/payportal/pkg/lockout"
	"github.com/tendant/payportal/pkg/payment"
	"github.com/tendant/payportal/pkg/repository"
	"github.com/tendant/payportal/pkg/validate"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	var (
		users    auth.UserStore
		payments payment.Store
		db       *sql.DB
	)
	switch cfg.StoreDriver {
	case "memory":
		store := repository.NewMemoryStore()
		users, payments = store.Users(), store.Payments()
		logger.Warn("using in-memory store; data is lost on restart")
	default:
		db, err = repository.NewDB(ctx, cfg.DatabaseURL(), repository.DefaultPoolConfig())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		users, payments = repository.NewUsersRepository(db), repository.NewPaymentsRepository(db)
		logger.Info("connected to database")
	}

	// Initialize services
	secrets, err := auth.NewSecretBoxFromHex(cfg.MFAEncryptionKey)
	if err != nil {
		logger.Error("invalid MFA_ENCRYPTION_KEY", "error", err)
		os.Exit(1)
	}
	validator := validate.New()
	hasher := auth.NewHasher(auth.HasherConfig{
		Time:     cfg.Argon2.Time,
		MemoryKB: cfg.Argon2.MemoryKB,
		Threads:  cfg.Argon2.Threads,
	})
	totpEngine := auth.NewTOTPEngine(cfg.MFAIssuer)
	sessionService := auth.NewSessionService(auth.SessionConfig{
		JWTSecret:     []byte(cfg.JWTSecret),
		Issuer:        cfg.JWTIssuer,
		SessionTTL:    cfg.SessionTTL,
		PendingMFATTL: cfg.PendingMFATTL,
	})
	lockoutPolicy := lockout.Policy{
		Threshold: cfg.Lockout.MaxAttempts,
		Duration:  cfg.Lockout.Duration,
	}

	accountService := auth.NewAccountService(
		users,
		hasher,
		auth.NewPasswordPolicy(cfg.PasswordPolicy),
		validator,
		cfg.Validation.StrictEmail,
		cfg.Validation.BlockDisposableEmails,
		logger,
	)
	loginService := auth.NewLoginService(users, hasher, totpEngine, secrets, sessionService, lockoutPolicy, logger)
	mfaService := auth.NewMFAService(users, totpEngine, secrets, logger)

	// Initialize email notifications if configured
	var (
		notifier payment.Notifier
		mailer   *notification.EmailService
	)
	if cfg.SMTP.Enabled() {
		mailer = notification.NewEmailService(notification.EmailConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			FromName: cfg.SMTP.FromName,
			To:       cfg.SMTP.NotifyTo,
		}, logger)
		notifier = mailer
		logger.Info("payment notifications enabled", "recipients", len(cfg.SMTP.NotifyTo))
	}
	paymentService := payment.NewService(payments, validator, notifier, logger)

	// Seed the first administrator
	if cfg.BootstrapAdmin.Enabled() {
		created, err := accountService.BootstrapAdmin(ctx, auth.StaffInput{
			FullName:      cfg.BootstrapAdmin.FullName,
			IDNumber:      cfg.BootstrapAdmin.IDNumber,
			AccountNumber: cfg.BootstrapAdmin.AccountNumber,
			Email:         cfg.BootstrapAdmin.Email,
			Password:      cfg.BootstrapAdmin.Password,
		})
		if err != nil {
			logger.Error("failed to create bootstrap admin", "error", err)
			os.Exit(1)
		}
		if created {
			logger.Info("bootstrap admin created", "email", auth.NormalizeEmail(cfg.BootstrapAdmin.Email))
		}
	}

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:          logger,
		AccountService:  accountService,
		LoginService:    loginService,
		SessionService:  sessionService,
		MFAService:      mfaService,
		PaymentService:  paymentService,
		Validator:       validator,
		RateLimitConfig: cfg.RateLimit,
		SecurityHeaders: cfg.SecurityHeaders,
		CORS:            cfg.CORS,
		Cookie: httputil.CookieConfig{
			Domain: cfg.Cookie.Domain,
			Path:   cfg.Cookie.Path,
			Secure: cfg.Cookie.Secure,
		},
		MaxRequestBytes: cfg.MaxRequestBytes,
	})

	// Create HTTP server
	addr := cfg.ListenAddr()
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", "addr", addr, "store", cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	// Metrics listener, kept off the public API port
	var metricsServer *http.Server
	if cfg.MetricsPort > 0 {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr(),
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("starting metrics server", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	// Graceful shutdown on signal or when either server fails
	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var shutdownErr error
		if err := server.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("api shutdown: %w", err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				shutdownErr = errors.Join(shutdownErr, fmt.Errorf("metrics shutdown: %w", err))
			}
		}
		// No request can queue a notification any more; let the pending ones finish.
		if mailer != nil {
			if err := mailer.Shutdown(shutdownCtx); err != nil {
				shutdownErr = errors.Join(shutdownErr, err)
			}
		}
		return shutdownErr
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
