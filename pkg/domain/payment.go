package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the lifecycle stage of a payment.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	// PaymentFailed is terminal and reserved for out-of-band failure handling.
	PaymentFailed PaymentStatus = "failed"
)

// MaxPaymentAmountCents is the ceiling of a single payment (1e9 in major units).
const MaxPaymentAmountCents int64 = 1_000_000_000 * 100

// Valid reports whether s is a known status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentProcessing, PaymentCompleted, PaymentFailed:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to PaymentStatus) bool {
	switch from {
	case PaymentPending:
		return to == PaymentProcessing || to == PaymentFailed
	case PaymentProcessing:
		return to == PaymentCompleted || to == PaymentFailed
	}
	return false
}

// Payment is a transfer request raised by a customer.
type Payment struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	AmountCents  int64
	Currency     string
	Provider     string
	PayeeAccount string
	SWIFTCode    string
	Status       PaymentStatus
	VerifiedBy   *uuid.UUID
	VerifiedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Amount formats the amount in major units with two decimals.
func (p *Payment) Amount() string {
	return FormatCents(p.AmountCents)
}

// FormatCents renders minor units as a decimal string.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// PaymentView is the outward representation of a payment.
type PaymentView struct {
	ID           uuid.UUID     `json:"id"`
	OwnerID      uuid.UUID     `json:"owner_id"`
	Amount       string        `json:"amount"`
	Currency     string        `json:"currency"`
	Provider     string        `json:"provider"`
	PayeeAccount string        `json:"payee_account"`
	SWIFTCode    string        `json:"swift_code"`
	Status       PaymentStatus `json:"status"`
	VerifiedBy   *uuid.UUID    `json:"verified_by,omitempty"`
	VerifiedAt   *time.Time    `json:"verified_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// View returns the outward representation of the payment.
func (p *Payment) View() PaymentView {
	return PaymentView{
		ID:           p.ID,
		OwnerID:      p.OwnerID,
		Amount:       p.Amount(),
		Currency:     p.Currency,
		Provider:     p.Provider,
		PayeeAccount: p.PayeeAccount,
		SWIFTCode:    p.SWIFTCode,
		Status:       p.Status,
		VerifiedBy:   p.VerifiedBy,
		VerifiedAt:   p.VerifiedAt,
		CreatedAt:    p.CreatedAt,
	}
}

// PaymentTransition describes one atomic status change guarded by the expected current status.
type PaymentTransition struct {
	PaymentID uuid.UUID
	From      PaymentStatus
	To        PaymentStatus
	// VerifiedBy is recorded only when leaving pending for processing.
	VerifiedBy *uuid.UUID
	At         time.Time
}
