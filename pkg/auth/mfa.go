package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/payportal/pkg/domain"
)

// MFAService handles TOTP enrollment: issue a provisional secret, then
// promote it once the user proves possession with a valid code.
type MFAService struct {
	users   UserStore
	totp    *TOTPEngine
	secrets *SecretBox
	logger  *slog.Logger
	now     func() time.Time
}

// NewMFAService creates a new MFA service
func NewMFAService(users UserStore, totp *TOTPEngine, secrets *SecretBox, logger *slog.Logger) *MFAService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MFAService{
		users:   users,
		totp:    totp,
		secrets: secrets,
		logger:  logger,
		now:     time.Now,
	}
}

// Setup issues a fresh provisional secret, replacing any earlier unconfirmed one.
// The returned URI and QR code are not persisted.
func (s *MFAService) Setup(ctx context.Context, p domain.Principal) (*domain.MFASetup, error) {
	user, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if user.MFA.Status() == domain.MFAStatusEnabled {
		return nil, domain.ErrMFAAlreadyEnabled
	}

	setup, err := s.totp.Generate(user.MFALabel())
	if err != nil {
		return nil, err
	}

	encrypted, err := s.secrets.Seal(setup.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt TOTP secret: %w", err)
	}

	if err := s.users.SetMFATempSecret(ctx, user.ID, encrypted, s.now()); err != nil {
		return nil, err
	}

	s.logger.Info("MFA secret issued", "user_id", user.ID)
	return setup, nil
}

// Confirm verifies code against the provisional secret and, on success, makes
// it the user's authoritative secret. A wrong code leaves the state unchanged.
func (s *MFAService) Confirm(ctx context.Context, p domain.Principal, code string) error {
	user, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return err
	}
	if user.MFA.Status() == domain.MFAStatusEnabled {
		return domain.ErrMFAAlreadyEnabled
	}

	encrypted, ok := user.MFA.PendingSecret()
	if !ok {
		return domain.ErrMFANotInitiated
	}

	secret, err := s.secrets.Open(encrypted)
	if err != nil {
		return fmt.Errorf("failed to decrypt TOTP secret: %w", err)
	}

	now := s.now()
	if !s.totp.Validate(code, secret, now) {
		return domain.ErrInvalidMFACode
	}

	if err := s.users.PromoteMFASecret(ctx, user.ID, encrypted, now); err != nil {
		return err
	}

	s.logger.Info("MFA enabled", "user_id", user.ID)
	return nil
}

// Status returns the enrollment stage of the caller.
func (s *MFAService) Status(ctx context.Context, p domain.Principal) (domain.MFAStatus, error) {
	user, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return domain.MFAStatusUnenrolled, err
	}
	return user.MFA.Status(), nil
}
