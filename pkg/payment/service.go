// Package payment implements the payment lifecycle: customers submit payments,
// staff verify them into processing and then mark them completed.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/payportal/internal/metrics"
	"github.com/tendant/payportal/pkg/domain"
	"github.com/tendant/payportal/pkg/validate"
)

// Scope selects which payments List returns.
type Scope string

const (
	ScopeMine    Scope = "mine"
	ScopeAll     Scope = "all"
	ScopePending Scope = "pending"
)

// ParseScope parses a list scope. An empty string yields the default for role.
func ParseScope(s string, role domain.Role) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		if role.CanReviewPayments() {
			return ScopeAll, nil
		}
		return ScopeMine, nil
	case ScopeMine:
		return ScopeMine, nil
	case ScopeAll:
		return ScopeAll, nil
	case ScopePending:
		return ScopePending, nil
	}
	return "", domain.NewValidationError("scope", "must be one of mine all pending")
}

// CreateInput is a customer's payment submission.
type CreateInput struct {
	Amount       string `json:"amount" validate:"required,amount"`
	Currency     string `json:"currency" validate:"required,currency"`
	Provider     string `json:"provider" validate:"required,min=2,max=50"`
	PayeeAccount string `json:"payee_account" validate:"required,min=6,max=20,digits"`
	SWIFTCode    string `json:"swift_code" validate:"required,swift"`
}

func (in *CreateInput) normalize() {
	in.Amount = strings.TrimSpace(in.Amount)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	in.Provider = strings.Join(strings.Fields(in.Provider), " ")
	in.PayeeAccount = strings.TrimSpace(in.PayeeAccount)
	in.SWIFTCode = strings.ToUpper(strings.TrimSpace(in.SWIFTCode))
}

// Service runs the payment lifecycle.
type Service struct {
	store     Store
	validator *validate.Validator
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a payment service. notifier may be nil.
func NewService(store Store, v *validate.Validator, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		validator: v,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// Create records a new pending payment owned by the caller.
func (s *Service) Create(ctx context.Context, caller domain.Principal, in CreateInput) (*domain.Payment, error) {
	if !caller.Role.CanCreatePayments() {
		return nil, domain.Forbidden(domain.RoleCustomer)
	}

	in.normalize()
	if err := s.validator.Struct(&in); err != nil {
		return nil, err
	}
	cents, err := ParseAmount(in.Amount)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := &domain.Payment{
		ID:           uuid.New(),
		OwnerID:      caller.UserID,
		AmountCents:  cents,
		Currency:     in.Currency,
		Provider:     in.Provider,
		PayeeAccount: in.PayeeAccount,
		SWIFTCode:    in.SWIFTCode,
		Status:       domain.PaymentPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("payment created",
		"payment_id", p.ID,
		"owner_id", p.OwnerID,
		"amount", p.Amount(),
		"currency", p.Currency,
	)
	metrics.PaymentStatus(string(p.Status))
	s.notify(ctx, p)
	return p, nil
}

// Verify moves a pending payment to processing and records the verifier.
func (s *Service) Verify(ctx context.Context, caller domain.Principal, id uuid.UUID) (*domain.Payment, error) {
	if !caller.Role.CanReviewPayments() {
		return nil, domain.Forbidden(domain.RoleEmployee, domain.RoleAdmin)
	}
	verifier := caller.UserID
	return s.transition(ctx, caller, domain.PaymentTransition{
		PaymentID:  id,
		From:       domain.PaymentPending,
		To:         domain.PaymentProcessing,
		VerifiedBy: &verifier,
		At:         s.now(),
	})
}

// Complete moves a processing payment to completed.
func (s *Service) Complete(ctx context.Context, caller domain.Principal, id uuid.UUID) (*domain.Payment, error) {
	if !caller.Role.CanReviewPayments() {
		return nil, domain.Forbidden(domain.RoleEmployee, domain.RoleAdmin)
	}
	return s.transition(ctx, caller, domain.PaymentTransition{
		PaymentID: id,
		From:      domain.PaymentProcessing,
		To:        domain.PaymentCompleted,
		At:        s.now(),
	})
}

func (s *Service) transition(ctx context.Context, caller domain.Principal, t domain.PaymentTransition) (*domain.Payment, error) {
	p, err := s.store.Transition(ctx, t)
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment status changed",
		"payment_id", p.ID,
		"from", t.From,
		"to", p.Status,
		"by", caller.UserID,
	)
	metrics.PaymentStatus(string(p.Status))
	s.notify(ctx, p)
	return p, nil
}

// Get returns one payment. Customers only see their own; anything else is
// reported as not found.
func (s *Service) Get(ctx context.Context, caller domain.Principal, id uuid.UUID) (*domain.Payment, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.Role.CanReviewPayments() || p.OwnerID == caller.UserID {
		return p, nil
	}
	return nil, domain.ErrPaymentNotFound
}

// List returns the payments in scope. Customers may only list their own;
// the pending scope is the review queue, oldest first.
func (s *Service) List(ctx context.Context, caller domain.Principal, scope Scope) ([]*domain.Payment, error) {
	var (
		payments []*domain.Payment
		err      error
	)

	switch scope {
	case ScopeMine:
		payments, err = s.store.ListByOwner(ctx, caller.UserID)
	case ScopeAll, ScopePending:
		if !caller.Role.CanReviewPayments() {
			return nil, domain.Forbidden(domain.RoleEmployee, domain.RoleAdmin)
		}
		if scope == ScopePending {
			payments, err = s.store.ListByStatus(ctx, domain.PaymentPending)
		} else {
			payments, err = s.store.ListAll(ctx)
		}
	default:
		return nil, domain.NewValidationError("scope", "must be one of mine all pending")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func (s *Service) notify(ctx context.Context, p *domain.Payment) {
	if s.notifier == nil {
		return
	}
	s.notifier.PaymentChanged(context.WithoutCancel(ctx), p)
}
