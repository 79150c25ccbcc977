package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/payportal/pkg/domain"
	"github.com/tendant/payportal/pkg/lockout"
	"github.com/tendant/payportal/pkg/validate"
)

// RegisterInput is a customer self-registration.
type RegisterInput struct {
	FullName      string `json:"full_name" validate:"required,fullname"`
	IDNumber      string `json:"id_number" validate:"required,len=13,digits"`
	AccountNumber string `json:"account_number" validate:"required,min=6,max=20,digits"`
	Password      string `json:"password" validate:"required,max=128"`
}

// StaffInput is an administrator creating an employee or admin account.
type StaffInput struct {
	FullName      string      `json:"full_name" validate:"required,fullname"`
	IDNumber      string      `json:"id_number" validate:"required,len=13,digits"`
	AccountNumber string      `json:"account_number" validate:"required,min=6,max=20,digits"`
	Email         string      `json:"email" validate:"required,email,max=254"`
	Password      string      `json:"password" validate:"required,max=128"`
	Role          domain.Role `json:"role" validate:"required,oneof=employee admin"`
}

// AccountService creates and administers user accounts.
type AccountService struct {
	users                 UserStore
	hasher                *Hasher
	policy                *PasswordPolicy
	validator             *validate.Validator
	strictEmailValidation bool
	blockDisposableEmail  bool
	logger                *slog.Logger
	now                   func() time.Time
}

// NewAccountService creates a new account service.
func NewAccountService(users UserStore, hasher *Hasher, policy *PasswordPolicy, v *validate.Validator, strictEmailValidation, blockDisposableEmail bool, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		users:                 users,
		hasher:                hasher,
		policy:                policy,
		validator:             v,
		strictEmailValidation: strictEmailValidation,
		blockDisposableEmail:  blockDisposableEmail,
		logger:                logger,
		now:                   time.Now,
	}
}

// Register creates a customer account. The customer logs in by account number.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.FullName = SanitizeName(in.FullName)
	if err := s.validator.Struct(&in); err != nil {
		return nil, err
	}
	if err := s.checkPassword(in.Password); err != nil {
		return nil, err
	}

	user, err := s.newUser(in.FullName, in.IDNumber, in.AccountNumber, nil, in.Password, domain.RoleCustomer)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("customer registered", "user_id", user.ID)
	return user, nil
}

// CreateStaff creates an employee or admin account. Only admins may call it.
func (s *AccountService) CreateStaff(ctx context.Context, caller domain.Principal, in StaffInput) (*domain.User, error) {
	if !caller.Role.CanManageUsers() {
		return nil, domain.Forbidden(domain.RoleAdmin)
	}
	return s.createStaff(ctx, in)
}

func (s *AccountService) createStaff(ctx context.Context, in StaffInput) (*domain.User, error) {
	in.FullName = SanitizeName(in.FullName)
	in.Email = NormalizeEmail(in.Email)
	if err := s.validator.Struct(&in); err != nil {
		return nil, err
	}
	if err := ValidateEmail(in.Email, s.strictEmailValidation, s.blockDisposableEmail); err != nil {
		return nil, err
	}
	if err := s.checkPassword(in.Password); err != nil {
		return nil, err
	}

	email := in.Email
	user, err := s.newUser(in.FullName, in.IDNumber, in.AccountNumber, &email, in.Password, in.Role)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("staff account created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// BootstrapAdmin creates the first administrator unless the email is already taken.
// It reports whether an account was created.
func (s *AccountService) BootstrapAdmin(ctx context.Context, in StaffInput) (bool, error) {
	exists, err := s.users.ExistsByEmail(ctx, NormalizeEmail(in.Email))
	if err != nil {
		return false, fmt.Errorf("failed to check bootstrap admin: %w", err)
	}
	if exists {
		return false, nil
	}

	in.Role = domain.RoleAdmin
	if _, err := s.createStaff(ctx, in); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UpdateUser changes another account's active flag or role. Accounts are never deleted.
func (s *AccountService) UpdateUser(ctx context.Context, caller domain.Principal, userID uuid.UUID, update domain.AccessUpdate) (*domain.User, error) {
	if !caller.Role.CanManageUsers() {
		return nil, domain.Forbidden(domain.RoleAdmin)
	}
	if update.Empty() {
		return nil, domain.NewValidationError("body", "nothing to update")
	}
	if update.Role != nil && !update.Role.Valid() {
		return nil, domain.NewValidationError("role", "must be one of customer employee admin")
	}
	if userID == caller.UserID {
		return nil, domain.NewValidationError("id", "administrators cannot change their own access")
	}

	user, err := s.users.UpdateAccess(ctx, userID, update, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.Info("user access updated",
		"user_id", user.ID,
		"by", caller.UserID,
		"is_active", user.IsActive,
		"role", user.Role,
	)
	return user, nil
}

// Profile returns the caller's own account.
func (s *AccountService) Profile(ctx context.Context, caller domain.Principal) (*domain.User, error) {
	return s.users.GetByID(ctx, caller.UserID)
}

func (s *AccountService) checkPassword(password string) error {
	if s.policy == nil {
		return nil
	}
	if err := s.policy.ValidatePassword(password); err != nil {
		return domain.NewValidationError("password", err.Error())
	}
	return nil
}

func (s *AccountService) newUser(fullName, idNumber, accountNumber string, email *string, password string, role domain.Role) (*domain.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	return &domain.User{
		ID:            uuid.New(),
		FullName:      fullName,
		IDNumber:      idNumber,
		AccountNumber: accountNumber,
		Email:         email,
		PasswordHash:  hash,
		Role:          role,
		Lock:          lockout.Unlocked(),
		IsActive:      true,
		MFA:           domain.MFAUnenrolled(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
