package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr      string
	ServerPort      int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxRequestBytes int64
	// MetricsPort serves /metrics on its own listener; 0 disables it.
	MetricsPort int

	// Storage: "postgres" or "memory"
	StoreDriver string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret        string
	JWTIssuer        string
	SessionTTL       time.Duration
	PendingMFATTL    time.Duration
	MFAIssuer        string
	MFAEncryptionKey string

	Cookie          CookieConfig
	Lockout         LockoutConfig
	Argon2          Argon2Config
	PasswordPolicy  PasswordPolicyConfig
	Validation      ValidationConfig
	RateLimit       RateLimitConfig
	SecurityHeaders SecurityHeadersConfig
	CORS            CORSConfig
	SMTP            SMTPConfig
	BootstrapAdmin  BootstrapAdminConfig
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Secure bool
	Domain string
	Path   string
}

// LockoutConfig controls brute-force protection.
type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
}

// Argon2Config is the password hashing work factor.
type Argon2Config struct {
	Time     uint32
	MemoryKB uint32
	Threads  uint8
}

// PasswordPolicyConfig defines password complexity requirements.
type PasswordPolicyConfig struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// ValidationConfig controls email validation strictness.
type ValidationConfig struct {
	StrictEmail           bool
	BlockDisposableEmails bool
}

// RateLimitConfig holds per-endpoint-group request budgets.
type RateLimitConfig struct {
	Enabled                  bool
	AuthRequestsPerMinute    int
	AuthWindowMinutes        int
	MFARequestsPerWindow     int
	MFAWindowMinutes         int
	PaymentRequestsPerMinute int
	PaymentWindowMinutes     int
}

// SecurityHeadersConfig holds response security header values.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	XSSProtection      string
	ReferrerPolicy     string
	PermissionsPolicy  string
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         int
}

// SMTPConfig configures outbound payment notifications.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	// NotifyTo is the operations mailbox told about payment status changes.
	NotifyTo []string
}

// Enabled reports whether an SMTP host and at least one recipient are configured.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != "" && len(c.NotifyTo) > 0
}

// BootstrapAdminConfig seeds the first administrator at startup.
type BootstrapAdminConfig struct {
	Email         string
	Password      string
	FullName      string
	IDNumber      string
	AccountNumber string
}

// Enabled reports whether a bootstrap admin is configured.
func (c BootstrapAdminConfig) Enabled() bool {
	return c.Email != "" && c.Password != ""
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr:      getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort:      getEnvInt("SERVER_PORT", 8080),
		ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBytes: int64(getEnvInt("MAX_REQUEST_BYTES", 1<<20)),
		MetricsPort:     getEnvInt("METRICS_PORT", 9090),

		StoreDriver: getEnv("STORE_DRIVER", "postgres"),

		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 25432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "payportal"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// JWT defaults
		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTIssuer:        getEnv("JWT_ISSUER", "payportal"),
		SessionTTL:       getEnvDuration("SESSION_TTL", 24*time.Hour),
		PendingMFATTL:    getEnvDuration("PENDING_MFA_TTL", 10*time.Minute),
		MFAIssuer:        getEnv("MFA_ISSUER", "PayPortal"),
		MFAEncryptionKey: getEnv("MFA_ENCRYPTION_KEY", ""),

		Cookie: CookieConfig{
			Secure: getEnvBool("COOKIE_SECURE", true),
			Domain: getEnv("COOKIE_DOMAIN", ""),
			Path:   getEnv("COOKIE_PATH", "/"),
		},
		Lockout: LockoutConfig{
			MaxAttempts: getEnvInt("LOCKOUT_MAX_ATTEMPTS", 5),
			Duration:    getEnvDuration("LOCKOUT_DURATION", 15*time.Minute),
		},
		Argon2: Argon2Config{
			Time:     uint32(getEnvInt("ARGON2_TIME", 3)),
			MemoryKB: uint32(getEnvInt("ARGON2_MEMORY_KB", 64*1024)),
			Threads:  uint8(getEnvInt("ARGON2_THREADS", 2)),
		},
		PasswordPolicy: PasswordPolicyConfig{
			MinLength:        getEnvInt("PASSWORD_MIN_LENGTH", 8),
			RequireUppercase: getEnvBool("PASSWORD_REQUIRE_UPPERCASE", true),
			RequireLowercase: getEnvBool("PASSWORD_REQUIRE_LOWERCASE", true),
			RequireNumber:    getEnvBool("PASSWORD_REQUIRE_NUMBER", true),
			RequireSpecial:   getEnvBool("PASSWORD_REQUIRE_SPECIAL", true),
		},
		Validation: ValidationConfig{
			StrictEmail:           getEnvBool("VALIDATION_STRICT_EMAIL", true),
			BlockDisposableEmails: getEnvBool("VALIDATION_BLOCK_DISPOSABLE_EMAILS", false),
		},
		RateLimit: RateLimitConfig{
			Enabled:                  getEnvBool("RATE_LIMIT_ENABLED", true),
			AuthRequestsPerMinute:    getEnvInt("RATE_LIMIT_AUTH_REQUESTS", 10),
			AuthWindowMinutes:        getEnvInt("RATE_LIMIT_AUTH_WINDOW_MINUTES", 1),
			MFARequestsPerWindow:     getEnvInt("RATE_LIMIT_MFA_REQUESTS", 10),
			MFAWindowMinutes:         getEnvInt("RATE_LIMIT_MFA_WINDOW_MINUTES", 5),
			PaymentRequestsPerMinute: getEnvInt("RATE_LIMIT_PAYMENT_REQUESTS", 60),
			PaymentWindowMinutes:     getEnvInt("RATE_LIMIT_PAYMENT_WINDOW_MINUTES", 1),
		},
		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_CSP", "default-src 'none'; frame-ancestors 'none'"),
			HSTSMaxAge:         getEnvInt("SECURITY_HSTS_MAX_AGE", 31536000),
			FrameOptions:       getEnv("SECURITY_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: getEnv("SECURITY_CONTENT_TYPE_OPTIONS", "nosniff"),
			XSSProtection:      getEnv("SECURITY_XSS_PROTECTION", "0"),
			ReferrerPolicy:     getEnv("SECURITY_REFERRER_POLICY", "no-referrer"),
			PermissionsPolicy:  getEnv("SECURITY_PERMISSIONS_POLICY", "camera=(), microphone=(), geolocation=()"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			MaxAge:         getEnvInt("CORS_MAX_AGE", 300),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
			FromName: getEnv("SMTP_FROM_NAME", "PayPortal"),
			NotifyTo: getEnvList("SMTP_NOTIFY_TO", nil),
		},
		BootstrapAdmin: BootstrapAdminConfig{
			Email:         getEnv("BOOTSTRAP_ADMIN_EMAIL", ""),
			Password:      getEnv("BOOTSTRAP_ADMIN_PASSWORD", ""),
			FullName:      getEnv("BOOTSTRAP_ADMIN_NAME", "Portal Administrator"),
			IDNumber:      getEnv("BOOTSTRAP_ADMIN_ID_NUMBER", "0000000000000"),
			AccountNumber: getEnv("BOOTSTRAP_ADMIN_ACCOUNT_NUMBER", "000000"),
		},
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if cfg.MFAEncryptionKey == "" {
		return nil, fmt.Errorf("MFA_ENCRYPTION_KEY is required")
	}
	if key, err := hex.DecodeString(cfg.MFAEncryptionKey); err != nil || len(key) != 32 {
		return nil, fmt.Errorf("MFA_ENCRYPTION_KEY must be 64 hex characters")
	}
	switch cfg.StoreDriver {
	case "postgres", "memory":
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", cfg.StoreDriver)
	}

	return cfg, nil
}

// DatabaseURL returns the lib/pq connection string.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// ListenAddr returns host:port for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerAddr, c.ServerPort)
}

// MetricsAddr returns host:port for the metrics listener.
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerAddr, c.MetricsPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
