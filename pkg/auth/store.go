package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/payportal/pkg/domain"
	"github.com/tendant/payportal/pkg/lockout"
)

// UserStore is the persistence the auth services need. Counter, lock and MFA
// changes must be applied atomically by the implementation.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByIdentifier(ctx context.Context, ident domain.Identifier) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	RecordLoginFailure(ctx context.Context, userID uuid.UUID, policy lockout.Policy, now time.Time) (lockout.Outcome, error)
	RecordLoginSuccess(ctx context.Context, userID uuid.UUID, now time.Time) error

	SetMFATempSecret(ctx context.Context, userID uuid.UUID, encryptedSecret string, now time.Time) error
	PromoteMFASecret(ctx context.Context, userID uuid.UUID, expectedTempSecret string, now time.Time) error

	UpdateAccess(ctx context.Context, userID uuid.UUID, update domain.AccessUpdate, now time.Time) (*domain.User, error)
}
