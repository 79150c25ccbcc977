package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tendant/payportal/internal/metrics"
	"github.com/tendant/payportal/pkg/domain"
	"github.com/tendant/payportal/pkg/lockout"
)

// LoginInput is one login attempt.
type LoginInput struct {
	Identifier domain.Identifier
	Password   string
	// MFACode is optional; when empty and MFA is enabled a pending token is issued.
	MFACode string
}

// LoginService runs the login state machine:
// lookup, lock check, password check, optional TOTP check, session issue.
type LoginService struct {
	users    UserStore
	hasher   *Hasher
	totp     *TOTPEngine
	secrets  *SecretBox
	sessions *SessionService
	policy   lockout.Policy
	logger   *slog.Logger
	now      func() time.Time

	decoyOnce sync.Once
	decoyHash string
}

// NewLoginService creates a new login service.
func NewLoginService(users UserStore, hasher *Hasher, totp *TOTPEngine, secrets *SecretBox, sessions *SessionService, policy lockout.Policy, logger *slog.Logger) *LoginService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoginService{
		users:    users,
		hasher:   hasher,
		totp:     totp,
		secrets:  secrets,
		sessions: sessions,
		policy:   policy.Normalize(),
		logger:   logger,
		now:      time.Now,
	}
}

// Login authenticates a customer by account number or a staff member by email.
func (s *LoginService) Login(ctx context.Context, in LoginInput) (*domain.LoginResult, error) {
	now := s.now()

	user, err := s.users.GetByIdentifier(ctx, in.Identifier)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.burnHash(in.Password)
		metrics.LoginAttempt(metrics.LoginInvalidCredentials)
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !identifierAdmits(in.Identifier.Kind, user.Role) {
		s.burnHash(in.Password)
		metrics.LoginAttempt(metrics.LoginInvalidCredentials)
		return nil, domain.ErrInvalidCredentials
	}

	if err := s.checkAccess(user, now); err != nil {
		return nil, err
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		if err := s.recordFailure(ctx, user, now, "password"); err != nil {
			return nil, err
		}
		metrics.LoginAttempt(metrics.LoginInvalidCredentials)
		return nil, domain.ErrInvalidCredentials
	}

	secret, mfaEnabled := user.MFA.EnabledSecret()
	if !mfaEnabled {
		return s.issue(ctx, user, now)
	}

	if in.MFACode == "" {
		pending, err := s.sessions.IssuePendingMFA(user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to issue pending MFA token: %w", err)
		}
		metrics.LoginAttempt(metrics.LoginMFARequired)
		return &domain.LoginResult{User: user, PendingMFA: pending}, nil
	}

	return s.verifyTOTPAndIssue(ctx, user, secret, in.MFACode, now)
}

// CompleteMFA finishes a login that stopped at the second factor.
func (s *LoginService) CompleteMFA(ctx context.Context, pendingToken, code string) (*domain.LoginResult, error) {
	now := s.now()

	userID, err := s.sessions.ValidatePendingMFAToken(pendingToken)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.checkAccess(user, now); err != nil {
		return nil, err
	}

	secret, ok := user.MFA.EnabledSecret()
	if !ok {
		return nil, domain.ErrInvalidToken
	}

	return s.verifyTOTPAndIssue(ctx, user, secret, code, now)
}

// checkAccess rejects deactivated accounts first so they never consume an attempt,
// then locked accounts.
func (s *LoginService) checkAccess(user *domain.User, now time.Time) error {
	if !user.IsActive {
		metrics.LoginAttempt(metrics.LoginDeactivated)
		return domain.ErrAccountDeactivated
	}
	if user.IsLocked(now) {
		metrics.LoginAttempt(metrics.LoginLocked)
		until, _ := user.Lock.Until()
		return &domain.AccountLockedError{Until: until, RemainingMinutes: user.Lock.RemainingMinutes(now)}
	}
	return nil
}

func (s *LoginService) verifyTOTPAndIssue(ctx context.Context, user *domain.User, encryptedSecret, code string, now time.Time) (*domain.LoginResult, error) {
	secret, err := s.secrets.Open(encryptedSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt TOTP secret: %w", err)
	}

	if !s.totp.Validate(code, secret, now) {
		if err := s.recordFailure(ctx, user, now, "mfa"); err != nil {
			return nil, err
		}
		metrics.LoginAttempt(metrics.LoginInvalidMFA)
		return nil, domain.ErrInvalidMFACode
	}

	return s.issue(ctx, user, now)
}

func (s *LoginService) recordFailure(ctx context.Context, user *domain.User, now time.Time, factor string) error {
	out, err := s.users.RecordLoginFailure(ctx, user.ID, s.policy, now)
	if err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}
	if out.Locked {
		metrics.Lockout(factor)
		until, _ := out.Lock.Until()
		s.logger.Warn("account locked after repeated login failures",
			"user_id", user.ID,
			"factor", factor,
			"locked_until", until,
		)
	}
	return nil
}

func (s *LoginService) issue(ctx context.Context, user *domain.User, now time.Time) (*domain.LoginResult, error) {
	if err := s.users.RecordLoginSuccess(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.FailedLoginAttempts = 0
	user.Lock = lockout.Unlocked()
	user.LastLogin = &now

	session, err := s.sessions.IssueSession(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	metrics.LoginAttempt(metrics.LoginSuccess)
	s.logger.Info("login succeeded", "user_id", user.ID, "role", user.Role)
	return &domain.LoginResult{User: user, Session: session}, nil
}

// burnHash spends the same work as a real verification so that unknown
// identifiers are not distinguishable by response time.
func (s *LoginService) burnHash(password string) {
	s.decoyOnce.Do(func() {
		s.decoyHash, _ = s.hasher.Hash("decoy-password")
	})
	s.hasher.Verify(password, s.decoyHash)
}

// identifierAdmits enforces the two login paths: customers by account number,
// staff by email.
func identifierAdmits(kind domain.IdentifierKind, role domain.Role) bool {
	switch kind {
	case domain.IdentifierAccountNumber:
		return role == domain.RoleCustomer
	case domain.IdentifierEmail:
		return role.IsStaff()
	}
	return false
}
