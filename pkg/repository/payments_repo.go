package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/payportal/pkg/domain"
)

// PaymentsRepository handles payment persistence.
type PaymentsRepository struct {
	db *sql.DB
}

// NewPaymentsRepository creates a new payments repository.
func NewPaymentsRepository(db *sql.DB) *PaymentsRepository {
	return &PaymentsRepository{db: db}
}

const paymentColumns = `id, owner_id, amount_cents, currency, provider, payee_account, swift_code,
		       status, verified_by, verified_at, created_at, updated_at`

func scanPayment(row rowScanner) (*domain.Payment, error) {
	p := &domain.Payment{}
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.AmountCents, &p.Currency, &p.Provider, &p.PayeeAccount, &p.SWIFTCode,
		&p.Status, &p.VerifiedBy, &p.VerifiedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a new payment.
func (r *PaymentsRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (id, owner_id, amount_cents, currency, provider, payee_account, swift_code,
		                      status, verified_by, verified_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.OwnerID, p.AmountCents, p.Currency, p.Provider, p.PayeeAccount, p.SWIFTCode,
		p.Status, p.VerifiedBy, p.VerifiedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetByID retrieves a payment by ID.
func (r *PaymentsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// Transition moves a payment from t.From to t.To in one conditional update.
// If the payment is not in t.From the result is a *domain.StateConflictError
// carrying the status it was found in.
func (r *PaymentsRepository) Transition(ctx context.Context, t domain.PaymentTransition) (*domain.Payment, error) {
	if !domain.CanTransition(t.From, t.To) {
		return nil, fmt.Errorf("illegal payment transition %s -> %s", t.From, t.To)
	}

	query := `
		UPDATE payments
		SET status = $3,
		    verified_by = COALESCE($4, verified_by),
		    verified_at = CASE WHEN $4::uuid IS NOT NULL THEN $5 ELSE verified_at END,
		    updated_at = $5
		WHERE id = $1 AND status = $2
		RETURNING ` + paymentColumns
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, t.PaymentID, t.From, t.To, t.VerifiedBy, t.At))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to transition payment: %w", err)
	}

	var current domain.PaymentStatus
	err = r.db.QueryRowContext(ctx, `SELECT status FROM payments WHERE id = $1`, t.PaymentID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read payment status: %w", err)
	}
	return nil, &domain.StateConflictError{PaymentID: t.PaymentID, Current: current, Required: t.From}
}

// ListByOwner returns a customer's payments, newest first.
func (r *PaymentsRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, ownerID)
}

// ListByStatus returns payments in one status in review order, oldest first.
func (r *PaymentsRepository) ListByStatus(ctx context.Context, status domain.PaymentStatus) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE status = $1 ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query, status)
}

// ListAll returns every payment, oldest first.
func (r *PaymentsRepository) ListAll(ctx context.Context) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query)
}

func (r *PaymentsRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := []*domain.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}
