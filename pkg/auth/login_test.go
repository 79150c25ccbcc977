package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tendant/payportal/pkg/domain"
)

func customerLogin(accountNumber, password, code string) LoginInput {
	return LoginInput{
		Identifier: domain.AccountNumberIdentifier(accountNumber),
		Password:   password,
		MFACode:    code,
	}
}

func TestLogin_CustomerWithoutMFA(t *testing.T) {
	env := newTestEnv(t)
	user := env.registerCustomer(t, "1234567890123", "123456")

	res, err := env.login.Login(context.Background(), customerLogin("123456", testPassword, ""))
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.RequiresMFA() || res.Session == nil {
		t.Fatalf("expected a session, got %+v", res)
	}

	p, err := env.sessions.PrincipalFromToken(res.Session.AccessToken)
	if err != nil {
		t.Fatalf("PrincipalFromToken() error = %v", err)
	}
	if p.UserID != user.ID || p.Role != domain.RoleCustomer {
		t.Errorf("principal = %+v", p)
	}

	stored, _ := env.users.GetByID(context.Background(), user.ID)
	if stored.LastLogin == nil || !stored.LastLogin.Equal(env.clock.Now()) {
		t.Errorf("LastLogin = %v", stored.LastLogin)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.registerCustomer(t, "1234567890123", "123456")
	env.createStaff(t, "9876543210987", "654321", "teller@bank.example", domain.RoleEmployee)

	tests := []struct {
		name string
		in   LoginInput
	}{
		{"unknown account", customerLogin("000000", testPassword, "")},
		{"wrong password", customerLogin("123456", "Bb2@bbbb", "")},
		{"staff by account number", customerLogin("654321", testPassword, "")},
		{"unknown email", LoginInput{Identifier: domain.EmailIdentifier("nobody@bank.example"), Password: testPassword}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.login.Login(context.Background(), tt.in)
			if !errors.Is(err, domain.ErrInvalidCredentials) {
				t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestLogin_StaffByEmail(t *testing.T) {
	env := newTestEnv(t)
	env.createStaff(t, "9876543210987", "654321", "teller@bank.example", domain.RoleEmployee)

	res, err := env.login.Login(context.Background(), LoginInput{
		Identifier: domain.EmailIdentifier("Teller@Bank.Example"),
		Password:   testPassword,
	})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.User.Role != domain.RoleEmployee {
		t.Errorf("Role = %s", res.User.Role)
	}
}

func TestLogin_LockoutAfterFiveFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerCustomer(t, "1234567890123", "123456")

	for i := 1; i <= 5; i++ {
		_, err := env.login.Login(ctx, customerLogin("123456", "wrong", ""))
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: error = %v, want ErrInvalidCredentials", i, err)
		}
	}

	_, err := env.login.Login(ctx, customerLogin("123456", testPassword, ""))
	var locked *domain.AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("correct password while locked: error = %v, want AccountLockedError", err)
	}
	if locked.RemainingMinutes != 15 {
		t.Errorf("RemainingMinutes = %d, want 15", locked.RemainingMinutes)
	}
	if !errors.Is(err, domain.ErrAccountLocked) {
		t.Error("AccountLockedError does not match ErrAccountLocked")
	}

	env.clock.Advance(10 * time.Minute)
	_, err = env.login.Login(ctx, customerLogin("123456", testPassword, ""))
	if !errors.As(err, &locked) || locked.RemainingMinutes != 5 {
		t.Errorf("after 10m: error = %v", err)
	}

	env.clock.Advance(5*time.Minute + time.Second)
	if _, err := env.login.Login(ctx, customerLogin("123456", testPassword, "")); err != nil {
		t.Fatalf("after lock expiry: error = %v", err)
	}

	stored, _ := env.users.GetByID(ctx, user.ID)
	if stored.FailedLoginAttempts != 0 || stored.IsLocked(env.clock.Now()) {
		t.Errorf("state after success: attempts=%d lock=%+v", stored.FailedLoginAttempts, stored.Lock)
	}
}

func TestLogin_SuccessResetsCounter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerCustomer(t, "1234567890123", "123456")

	for i := 0; i < 4; i++ {
		env.login.Login(ctx, customerLogin("123456", "wrong", ""))
	}
	stored, _ := env.users.GetByID(ctx, user.ID)
	if stored.FailedLoginAttempts != 4 {
		t.Fatalf("FailedLoginAttempts = %d, want 4", stored.FailedLoginAttempts)
	}

	if _, err := env.login.Login(ctx, customerLogin("123456", testPassword, "")); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	// Four more failures must not lock: the counter restarted.
	for i := 0; i < 4; i++ {
		env.login.Login(ctx, customerLogin("123456", "wrong", ""))
	}
	if _, err := env.login.Login(ctx, customerLogin("123456", testPassword, "")); err != nil {
		t.Errorf("Login() after reset error = %v", err)
	}
}

func TestLogin_DeactivatedAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerCustomer(t, "1234567890123", "123456")

	inactive := false
	if _, err := env.users.UpdateAccess(ctx, user.ID, domain.AccessUpdate{IsActive: &inactive}, env.clock.Now()); err != nil {
		t.Fatal(err)
	}

	for _, password := range []string{testPassword, "wrong"} {
		_, err := env.login.Login(ctx, customerLogin("123456", password, ""))
		if !errors.Is(err, domain.ErrAccountDeactivated) {
			t.Errorf("Login(%q) error = %v, want ErrAccountDeactivated", password, err)
		}
	}

	stored, _ := env.users.GetByID(ctx, user.ID)
	if stored.FailedLoginAttempts != 0 {
		t.Errorf("deactivated login consumed an attempt: %d", stored.FailedLoginAttempts)
	}
}

func TestLogin_MFAPendingThenComplete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerCustomer(t, "1234567890123", "123456")
	secret := env.enrollMFA(t, user)

	res, err := env.login.Login(ctx, customerLogin("123456", testPassword, ""))
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !res.RequiresMFA() || res.Session != nil {
		t.Fatalf("expected pending MFA, got %+v", res)
	}
	if _, err := env.sessions.ValidateSessionToken(res.PendingMFA.Token); err == nil {
		t.Error("pending token accepted as a session")
	}

	_, err = env.login.CompleteMFA(ctx, res.PendingMFA.Token, "000000")
	if !errors.Is(err, domain.ErrInvalidMFACode) {
		t.Errorf("CompleteMFA(wrong) error = %v", err)
	}

	done, err := env.login.CompleteMFA(ctx, res.PendingMFA.Token, codeAt(t, secret, env.clock.Now()))
	if err != nil {
		t.Fatalf("CompleteMFA() error = %v", err)
	}
	if done.Session == nil {
		t.Fatal("no session after MFA")
	}

	stored, _ := env.users.GetByID(ctx, user.ID)
	if stored.FailedLoginAttempts != 0 {
		t.Errorf("FailedLoginAttempts = %d after success", stored.FailedLoginAttempts)
	}
}

func TestLogin_MFACodeInline(t *testing.T) {
	env := newTestEnv(t)
	user := env.registerCustomer(t, "1234567890123", "123456")
	secret := env.enrollMFA(t, user)

	res, err := env.login.Login(context.Background(), customerLogin("123456", testPassword, codeAt(t, secret, env.clock.Now().Add(-30*time.Second))))
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.Session == nil {
		t.Error("expected a session")
	}
}

func TestLogin_PendingTokenExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerCustomer(t, "1234567890123", "123456")
	secret := env.enrollMFA(t, user)

	res, _ := env.login.Login(ctx, customerLogin("123456", testPassword, ""))
	env.clock.Advance(10*time.Minute + time.Second)

	_, err := env.login.CompleteMFA(ctx, res.PendingMFA.Token, codeAt(t, secret, env.clock.Now()))
	if !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("CompleteMFA() error = %v, want ErrInvalidToken", err)
	}
}

func TestLogin_MFAFailuresCountTowardLockout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerCustomer(t, "1234567890123", "123456")
	secret := env.enrollMFA(t, user)

	for i := 0; i < 3; i++ {
		env.login.Login(ctx, customerLogin("123456", "wrong", ""))
	}
	for i := 0; i < 2; i++ {
		_, err := env.login.Login(ctx, customerLogin("123456", testPassword, "000000"))
		if !errors.Is(err, domain.ErrInvalidMFACode) {
			t.Fatalf("wrong code: error = %v", err)
		}
	}

	_, err := env.login.Login(ctx, customerLogin("123456", testPassword, codeAt(t, secret, env.clock.Now())))
	if !errors.Is(err, domain.ErrAccountLocked) {
		t.Errorf("error = %v, want ErrAccountLocked", err)
	}
}

func TestLogin_UnconfirmedSecretIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerCustomer(t, "1234567890123", "123456")

	if _, err := env.mfa.Setup(ctx, user.Principal()); err != nil {
		t.Fatal(err)
	}

	res, err := env.login.Login(ctx, customerLogin("123456", testPassword, ""))
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.RequiresMFA() {
		t.Error("unconfirmed secret gated the login")
	}
}
