package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/tendant/payportal/pkg/domain"
)

// Store persists payments. Transition must apply the status change only when
// the stored status still equals t.From, and report a *domain.StateConflictError
// otherwise.
type Store interface {
	Create(ctx context.Context, p *domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	Transition(ctx context.Context, t domain.PaymentTransition) (*domain.Payment, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Payment, error)
	ListByStatus(ctx context.Context, status domain.PaymentStatus) ([]*domain.Payment, error)
	ListAll(ctx context.Context) ([]*domain.Payment, error)
}

// Notifier is told about new payments and status changes. Implementations
// must not block the caller.
type Notifier interface {
	PaymentChanged(ctx context.Context, p *domain.Payment)
}
