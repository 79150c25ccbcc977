package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

const (
	testJWTSecret = "test-secret-key-that-is-long-enough-32"
	testMFAKey    = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("MFA_ENCRYPTION_KEY", testMFAKey)
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	// Clear any other env vars that might interfere
	envVars := []string{"SERVER_ADDR", "SERVER_PORT", "DB_HOST", "DB_PORT", "DB_SSLMODE", "SESSION_TTL", "PENDING_MFA_TTL", "STORE_DRIVER", "LOCKOUT_MAX_ATTEMPTS", "LOCKOUT_DURATION", "METRICS_PORT"}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Check defaults
	if cfg.ServerAddr != "0.0.0.0" {
		t.Errorf("ServerAddr = %q, want %q", cfg.ServerAddr, "0.0.0.0")
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 8080)
	}
	if cfg.DBHost != "localhost" {
		t.Errorf("DBHost = %q, want %q", cfg.DBHost, "localhost")
	}
	if cfg.StoreDriver != "postgres" {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, "postgres")
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v, want %v", cfg.SessionTTL, 24*time.Hour)
	}
	if cfg.PendingMFATTL != 10*time.Minute {
		t.Errorf("PendingMFATTL = %v, want %v", cfg.PendingMFATTL, 10*time.Minute)
	}
	if cfg.Lockout.MaxAttempts != 5 {
		t.Errorf("Lockout.MaxAttempts = %d, want 5", cfg.Lockout.MaxAttempts)
	}
	if cfg.Lockout.Duration != 15*time.Minute {
		t.Errorf("Lockout.Duration = %v, want %v", cfg.Lockout.Duration, 15*time.Minute)
	}
	if !cfg.Cookie.Secure {
		t.Error("Cookie.Secure should default to true")
	}
	if cfg.PasswordPolicy.MinLength != 8 {
		t.Errorf("PasswordPolicy.MinLength = %d, want 8", cfg.PasswordPolicy.MinLength)
	}
	if got := cfg.MetricsAddr(); got != "0.0.0.0:9090" {
		t.Errorf("MetricsAddr() = %q, want %q", got, "0.0.0.0:9090")
	}
}

func TestLoad_RequiredJWTSecret(t *testing.T) {
	t.Setenv("MFA_ENCRYPTION_KEY", testMFAKey)
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	if err == nil {
		t.Error("Load should fail when JWT_SECRET is not set")
	}
}

func TestLoad_ShortJWTSecret(t *testing.T) {
	t.Setenv("MFA_ENCRYPTION_KEY", testMFAKey)
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	if err == nil {
		t.Error("Load should fail when JWT_SECRET is shorter than 32 characters")
	}
}

func TestLoad_MFAEncryptionKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"missing", "", true},
		{"not hex", strings.Repeat("z", 64), true},
		{"too short", "0011", true},
		{"valid", testMFAKey, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", testJWTSecret)
			t.Setenv("MFA_ENCRYPTION_KEY", tt.key)

			_, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_InvalidStoreDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_DRIVER", "sqlite")

	if _, err := Load(); err == nil {
		t.Error("Load should reject unknown STORE_DRIVER")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_HOST", "db.example.com")
	t.Setenv("SESSION_TTL", "12h")
	t.Setenv("COOKIE_SECURE", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://portal.example.com, https://admin.example.com")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerPort != 9090 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 9090)
	}
	if cfg.DBHost != "db.example.com" {
		t.Errorf("DBHost = %q, want %q", cfg.DBHost, "db.example.com")
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Errorf("SessionTTL = %v, want %v", cfg.SessionTTL, 12*time.Hour)
	}
	if cfg.Cookie.Secure {
		t.Error("Cookie.Secure should be false")
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://admin.example.com" {
		t.Errorf("CORS.AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.StoreDriver != "memory" {
		t.Errorf("StoreDriver = %q, want memory", cfg.StoreDriver)
	}
}

func TestBootstrapAdminEnabled(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		expected bool
	}{
		{"both set", "admin@bank.example", "Adm1n!pass", true},
		{"only email", "admin@bank.example", "", false},
		{"only password", "", "Adm1n!pass", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := BootstrapAdminConfig{Email: tt.email, Password: tt.password}
			if c.Enabled() != tt.expected {
				t.Errorf("Enabled() = %v, want %v", c.Enabled(), tt.expected)
			}
		})
	}
}

func TestGetEnvInt_InvalidValue(t *testing.T) {
	t.Setenv("TEST_INT", "not-a-number")

	result := getEnvInt("TEST_INT", 42)
	if result != 42 {
		t.Errorf("getEnvInt should return default for invalid value, got %d", result)
	}
}

func TestGetEnvBool_InvalidValue(t *testing.T) {
	t.Setenv("TEST_BOOL", "maybe")

	if !getEnvBool("TEST_BOOL", true) {
		t.Error("getEnvBool should return default for invalid value")
	}
}

func TestGetEnvDuration_InvalidValue(t *testing.T) {
	t.Setenv("TEST_DURATION", "invalid")

	result := getEnvDuration("TEST_DURATION", 5*time.Minute)
	if result != 5*time.Minute {
		t.Errorf("getEnvDuration should return default for invalid value, got %v", result)
	}
}
