package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/tendant/payportal/internal/config"
	"github.com/tendant/payportal/pkg/domain"
	"github.com/tendant/payportal/pkg/lockout"
	"github.com/tendant/payportal/pkg/repository"
	"github.com/tendant/payportal/pkg/validate"
)

const testPassword = "Aa1!aaaa"

var testKey = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type testEnv struct {
	clock    *fakeClock
	users    *repository.MemoryUsers
	hasher   *Hasher
	totp     *TOTPEngine
	secrets  *SecretBox
	sessions *SessionService
	login    *LoginService
	mfa      *MFAService
	accounts *AccountService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	users := repository.NewMemoryStore().Users()
	hasher := NewHasher(HasherConfig{Time: 1, MemoryKB: 1024, Threads: 1})
	engine := NewTOTPEngine("PayPortal Test")
	box, err := NewSecretBox(testKey)
	if err != nil {
		t.Fatalf("NewSecretBox: %v", err)
	}
	sessions := NewSessionService(SessionConfig{JWTSecret: []byte("test-jwt-secret-at-least-32-bytes!"), Issuer: "payportal-test"})
	sessions.now = clock.Now

	login := NewLoginService(users, hasher, engine, box, sessions, lockout.DefaultPolicy(), logger)
	login.now = clock.Now
	mfa := NewMFAService(users, engine, box, logger)
	mfa.now = clock.Now
	policy := NewPasswordPolicy(config.PasswordPolicyConfig{
		MinLength: 8, RequireUppercase: true, RequireLowercase: true, RequireNumber: true, RequireSpecial: true,
	})
	accounts := NewAccountService(users, hasher, policy, validate.New(), true, false, logger)
	accounts.now = clock.Now

	return &testEnv{
		clock:    clock,
		users:    users,
		hasher:   hasher,
		totp:     engine,
		secrets:  box,
		sessions: sessions,
		login:    login,
		mfa:      mfa,
		accounts: accounts,
	}
}

func (e *testEnv) registerCustomer(t *testing.T, idNumber, accountNumber string) *domain.User {
	t.Helper()
	user, err := e.accounts.Register(context.Background(), RegisterInput{
		FullName:      "Test Customer",
		IDNumber:      idNumber,
		AccountNumber: accountNumber,
		Password:      testPassword,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return user
}

func (e *testEnv) createStaff(t *testing.T, idNumber, accountNumber, email string, role domain.Role) *domain.User {
	t.Helper()
	admin := domain.Principal{UserID: uuid.New(), Role: domain.RoleAdmin}
	user, err := e.accounts.CreateStaff(context.Background(), admin, StaffInput{
		FullName:      "Staff Member",
		IDNumber:      idNumber,
		AccountNumber: accountNumber,
		Email:         email,
		Password:      testPassword,
		Role:          role,
	})
	if err != nil {
		t.Fatalf("CreateStaff: %v", err)
	}
	return user
}

// enrollMFA runs setup and confirm and returns the plaintext secret.
func (e *testEnv) enrollMFA(t *testing.T, user *domain.User) string {
	t.Helper()
	ctx := context.Background()
	setup, err := e.mfa.Setup(ctx, user.Principal())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := e.mfa.Confirm(ctx, user.Principal(), codeAt(t, setup.Secret, e.clock.Now())); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	return setup.Secret
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom: %v", err)
	}
	return code
}
