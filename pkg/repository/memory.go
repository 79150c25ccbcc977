package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/payportal/pkg/domain"
	"github.com/tendant/payportal/pkg/lockout"
)

// MemoryStore keeps users and payments in process memory. Every method holds
// one mutex for its whole read-modify-write, which gives it the same
// atomicity as the conditional SQL updates of the Postgres repositories.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*domain.User
	payments map[uuid.UUID]*domain.Payment
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uuid.UUID]*domain.User),
		payments: make(map[uuid.UUID]*domain.Payment),
	}
}

// Users returns the user half of the store.
func (s *MemoryStore) Users() *MemoryUsers { return &MemoryUsers{s: s} }

// Payments returns the payment half of the store.
func (s *MemoryStore) Payments() *MemoryPayments { return &MemoryPayments{s: s} }

func copyUser(u *domain.User) *domain.User {
	c := *u
	if u.Email != nil {
		e := *u.Email
		c.Email = &e
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}

func copyPayment(p *domain.Payment) *domain.Payment {
	c := *p
	if p.VerifiedBy != nil {
		id := *p.VerifiedBy
		c.VerifiedBy = &id
	}
	if p.VerifiedAt != nil {
		t := *p.VerifiedAt
		c.VerifiedAt = &t
	}
	return &c
}

// MemoryUsers implements the user store over a MemoryStore.
type MemoryUsers struct {
	s *MemoryStore
}

func (m *MemoryUsers) Create(ctx context.Context, user *domain.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.users[user.ID]; ok {
		return domain.ErrUserAlreadyExists
	}
	for _, existing := range m.s.users {
		if existing.IDNumber == user.IDNumber || existing.AccountNumber == user.AccountNumber {
			return domain.ErrUserAlreadyExists
		}
		if user.Email != nil && existing.Email != nil && strings.EqualFold(*existing.Email, *user.Email) {
			return domain.ErrUserAlreadyExists
		}
	}
	m.s.users[user.ID] = copyUser(user)
	return nil
}

func (m *MemoryUsers) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	u, ok := m.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (m *MemoryUsers) GetByIdentifier(ctx context.Context, ident domain.Identifier) (*domain.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, u := range m.s.users {
		switch ident.Kind {
		case domain.IdentifierAccountNumber:
			if u.AccountNumber == ident.Value {
				return copyUser(u), nil
			}
		case domain.IdentifierEmail:
			if u.Email != nil && strings.EqualFold(*u.Email, ident.Value) {
				return copyUser(u), nil
			}
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MemoryUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, u := range m.s.users {
		if u.Email != nil && strings.EqualFold(*u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryUsers) RecordLoginFailure(ctx context.Context, userID uuid.UUID, policy lockout.Policy, now time.Time) (lockout.Outcome, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	u, ok := m.s.users[userID]
	if !ok {
		return lockout.Outcome{}, domain.ErrUserNotFound
	}
	if u.Lock.IsLocked(now) {
		return lockout.Outcome{Attempts: u.FailedLoginAttempts, Lock: u.Lock}, nil
	}
	out := policy.RegisterFailure(u.FailedLoginAttempts, u.Lock, now)
	u.FailedLoginAttempts = out.Attempts
	u.Lock = out.Lock
	u.UpdatedAt = now
	return out, nil
}

func (m *MemoryUsers) RecordLoginSuccess(ctx context.Context, userID uuid.UUID, now time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	u, ok := m.s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.FailedLoginAttempts = 0
	u.Lock = lockout.Unlocked()
	t := now
	u.LastLogin = &t
	u.UpdatedAt = now
	return nil
}

func (m *MemoryUsers) SetMFATempSecret(ctx context.Context, userID uuid.UUID, encryptedSecret string, now time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	u, ok := m.s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if u.MFA.Status() == domain.MFAStatusEnabled {
		return domain.ErrMFAAlreadyEnabled
	}
	u.MFA = domain.MFAPendingConfirmation(encryptedSecret)
	u.UpdatedAt = now
	return nil
}

func (m *MemoryUsers) PromoteMFASecret(ctx context.Context, userID uuid.UUID, expectedTempSecret string, now time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	u, ok := m.s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if u.MFA.Status() == domain.MFAStatusEnabled {
		return domain.ErrMFAAlreadyEnabled
	}
	temp, ok := u.MFA.PendingSecret()
	if !ok || temp != expectedTempSecret {
		return domain.ErrMFANotInitiated
	}
	u.MFA = domain.MFAEnabled(temp)
	u.UpdatedAt = now
	return nil
}

func (m *MemoryUsers) UpdateAccess(ctx context.Context, userID uuid.UUID, update domain.AccessUpdate, now time.Time) (*domain.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	u, ok := m.s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if update.Role != nil {
		if err := u.CheckRole(*update.Role); err != nil {
			return nil, err
		}
	}
	if update.IsActive != nil {
		u.IsActive = *update.IsActive
	}
	if update.Role != nil {
		u.Role = *update.Role
	}
	u.UpdatedAt = now
	return copyUser(u), nil
}

// MemoryPayments implements the payment store over a MemoryStore.
type MemoryPayments struct {
	s *MemoryStore
}

func (m *MemoryPayments) Create(ctx context.Context, p *domain.Payment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.payments[p.ID]; ok {
		return fmt.Errorf("payment %s already exists", p.ID)
	}
	m.s.payments[p.ID] = copyPayment(p)
	return nil
}

func (m *MemoryPayments) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	p, ok := m.s.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	return copyPayment(p), nil
}

func (m *MemoryPayments) Transition(ctx context.Context, t domain.PaymentTransition) (*domain.Payment, error) {
	if !domain.CanTransition(t.From, t.To) {
		return nil, fmt.Errorf("illegal payment transition %s -> %s", t.From, t.To)
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	p, ok := m.s.payments[t.PaymentID]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	if p.Status != t.From {
		return nil, &domain.StateConflictError{PaymentID: p.ID, Current: p.Status, Required: t.From}
	}
	p.Status = t.To
	if t.VerifiedBy != nil {
		id := *t.VerifiedBy
		at := t.At
		p.VerifiedBy = &id
		p.VerifiedAt = &at
	}
	p.UpdatedAt = t.At
	return copyPayment(p), nil
}

func (m *MemoryPayments) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Payment, error) {
	out := m.filter(func(p *domain.Payment) bool { return p.OwnerID == ownerID })
	sort.SliceStable(out, func(i, j int) bool { return newerFirst(out[i], out[j]) })
	return out, nil
}

func (m *MemoryPayments) ListByStatus(ctx context.Context, status domain.PaymentStatus) ([]*domain.Payment, error) {
	out := m.filter(func(p *domain.Payment) bool { return p.Status == status })
	sort.SliceStable(out, func(i, j int) bool { return olderFirst(out[i], out[j]) })
	return out, nil
}

func (m *MemoryPayments) ListAll(ctx context.Context) ([]*domain.Payment, error) {
	out := m.filter(func(*domain.Payment) bool { return true })
	sort.SliceStable(out, func(i, j int) bool { return olderFirst(out[i], out[j]) })
	return out, nil
}

func (m *MemoryPayments) filter(keep func(*domain.Payment) bool) []*domain.Payment {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	out := []*domain.Payment{}
	for _, p := range m.s.payments {
		if keep(p) {
			out = append(out, copyPayment(p))
		}
	}
	return out
}

// olderFirst orders by created_at then id, matching the SQL ORDER BY.
func olderFirst(a, b *domain.Payment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

func newerFirst(a, b *domain.Payment) bool {
	return olderFirst(b, a)
}
