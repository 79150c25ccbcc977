package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/payportal/pkg/domain"
	"github.com/tendant/payportal/pkg/lockout"
)

// UsersRepository handles user persistence.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

const userColumns = `id, full_name, id_number, account_number, email, password_hash, role,
		       failed_login_attempts, lock_until, is_active, last_login,
		       mfa_enabled, mfa_secret, mfa_temp_secret, created_at, updated_at`

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user                     domain.User
		lockUntil                *time.Time
		mfaEnabled               bool
		mfaSecret, mfaTempSecret *string
	)
	err := row.Scan(
		&user.ID, &user.FullName, &user.IDNumber, &user.AccountNumber, &user.Email,
		&user.PasswordHash, &user.Role, &user.FailedLoginAttempts, &lockUntil,
		&user.IsActive, &user.LastLogin, &mfaEnabled, &mfaSecret, &mfaTempSecret,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Lock = lockout.FromNullable(lockUntil)
	user.MFA = domain.MFAStateFromColumns(mfaEnabled, mfaSecret, mfaTempSecret)
	return &user, nil
}

// Create creates a new user. A duplicate ID number, account number or email
// yields domain.ErrUserAlreadyExists.
func (r *UsersRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, full_name, id_number, account_number, email, password_hash, role,
		                   failed_login_attempts, lock_until, is_active, last_login,
		                   mfa_enabled, mfa_secret, mfa_temp_secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	mfaEnabled, mfaSecret, mfaTempSecret := user.MFA.Columns()
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.FullName, user.IDNumber, user.AccountNumber, user.Email, user.PasswordHash, user.Role,
		user.FailedLoginAttempts, user.Lock.Nullable(), user.IsActive, user.LastLogin,
		mfaEnabled, mfaSecret, mfaTempSecret, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrUserAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UsersRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByIdentifier resolves a login identifier of either kind.
func (r *UsersRepository) GetByIdentifier(ctx context.Context, ident domain.Identifier) (*domain.User, error) {
	var where string
	switch ident.Kind {
	case domain.IdentifierAccountNumber:
		where = `account_number = $1`
	case domain.IdentifierEmail:
		where = `lower(email) = lower($1)`
	default:
		return nil, domain.ErrUserNotFound
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	user, err := scanUser(r.db.QueryRowContext(ctx, query, ident.Value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by %s: %w", ident.Kind, err)
	}
	return user, nil
}

// ExistsByEmail checks if a user exists by email.
func (r *UsersRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1))`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, email).Scan(&exists)
	return exists, err
}

// RecordLoginFailure counts one failed attempt in a single statement. When the
// count reaches the policy threshold the account is locked and the counter
// resets. An account that is already locked is left untouched.
func (r *UsersRepository) RecordLoginFailure(ctx context.Context, userID uuid.UUID, policy lockout.Policy, now time.Time) (lockout.Outcome, error) {
	policy = policy.Normalize()
	query := `
		UPDATE users
		SET failed_login_attempts = CASE
		        WHEN failed_login_attempts + 1 >= $2 THEN 0
		        ELSE failed_login_attempts + 1
		    END,
		    lock_until = CASE
		        WHEN failed_login_attempts + 1 >= $2 THEN $3
		        ELSE lock_until
		    END,
		    updated_at = $4
		WHERE id = $1 AND (lock_until IS NULL OR lock_until <= $4)
		RETURNING failed_login_attempts, lock_until
	`
	var (
		attempts  int
		lockUntil *time.Time
	)
	err := r.db.QueryRowContext(ctx, query, userID, policy.Threshold, policy.LockDeadline(now), now).
		Scan(&attempts, &lockUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return r.currentLockout(ctx, userID)
	}
	if err != nil {
		return lockout.Outcome{}, fmt.Errorf("failed to record login failure: %w", err)
	}

	state := lockout.FromNullable(lockUntil)
	return lockout.Outcome{
		Attempts: attempts,
		Lock:     state,
		Locked:   attempts == 0 && state.IsLocked(now),
	}, nil
}

func (r *UsersRepository) currentLockout(ctx context.Context, userID uuid.UUID) (lockout.Outcome, error) {
	query := `SELECT failed_login_attempts, lock_until FROM users WHERE id = $1`
	var (
		attempts  int
		lockUntil *time.Time
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&attempts, &lockUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return lockout.Outcome{}, domain.ErrUserNotFound
	}
	if err != nil {
		return lockout.Outcome{}, fmt.Errorf("failed to read lockout state: %w", err)
	}
	return lockout.Outcome{Attempts: attempts, Lock: lockout.FromNullable(lockUntil)}, nil
}

// RecordLoginSuccess clears the failure counter and lock and stamps last_login.
func (r *UsersRepository) RecordLoginSuccess(ctx context.Context, userID uuid.UUID, now time.Time) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0,
		    lock_until = NULL,
		    last_login = $2,
		    updated_at = $2
		WHERE id = $1
	`
	return r.execOne(ctx, "record login success", query, userID, now)
}

// SetMFATempSecret stores a provisional TOTP secret, replacing any earlier one.
// It refuses once MFA is enabled.
func (r *UsersRepository) SetMFATempSecret(ctx context.Context, userID uuid.UUID, encryptedSecret string, now time.Time) error {
	query := `
		UPDATE users
		SET mfa_temp_secret = $2, updated_at = $3
		WHERE id = $1 AND NOT mfa_enabled
	`
	result, err := r.db.ExecContext(ctx, query, userID, encryptedSecret, now)
	if err != nil {
		return fmt.Errorf("failed to store MFA secret: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return r.mfaMiss(ctx, userID, domain.ErrMFAAlreadyEnabled)
	}
	return nil
}

// PromoteMFASecret enables MFA by moving the provisional secret into place. The
// update applies only while the stored provisional secret still equals the one
// the caller verified.
func (r *UsersRepository) PromoteMFASecret(ctx context.Context, userID uuid.UUID, expectedTempSecret string, now time.Time) error {
	query := `
		UPDATE users
		SET mfa_enabled = true,
		    mfa_secret = mfa_temp_secret,
		    mfa_temp_secret = NULL,
		    updated_at = $3
		WHERE id = $1 AND mfa_temp_secret = $2 AND NOT mfa_enabled
	`
	result, err := r.db.ExecContext(ctx, query, userID, expectedTempSecret, now)
	if err != nil {
		return fmt.Errorf("failed to enable MFA: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return r.mfaMiss(ctx, userID, domain.ErrMFANotInitiated)
	}
	return nil
}

// mfaMiss explains why a conditional MFA update matched no row.
func (r *UsersRepository) mfaMiss(ctx context.Context, userID uuid.UUID, fallback error) error {
	var enabled bool
	err := r.db.QueryRowContext(ctx, `SELECT mfa_enabled FROM users WHERE id = $1`, userID).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read MFA state: %w", err)
	}
	if enabled {
		return domain.ErrMFAAlreadyEnabled
	}
	return fallback
}

// UpdateAccess changes the active flag and/or role. Nil fields are left as they are.
// A staff role is only granted to an account with an email address; otherwise the
// row is untouched and the result is a *domain.ValidationError.
func (r *UsersRepository) UpdateAccess(ctx context.Context, userID uuid.UUID, update domain.AccessUpdate, now time.Time) (*domain.User, error) {
	query := `
		UPDATE users
		SET is_active = COALESCE($2, is_active),
		    role = COALESCE($3, role),
		    updated_at = $4
		WHERE id = $1
		  AND ($3::text IS NULL OR $3::text = 'customer' OR email IS NOT NULL)
		RETURNING ` + userColumns
	var role *string
	if update.Role != nil {
		s := string(*update.Role)
		role = &s
	}
	user, err := scanUser(r.db.QueryRowContext(ctx, query, userID, update.IsActive, role, now))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	var exists bool
	err = r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return nil, domain.ErrUserNotFound
	}
	return nil, domain.StaffRoleNeedsEmail()
}

func (r *UsersRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
