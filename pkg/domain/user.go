package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/tendant/payportal/pkg/lockout"
)

// User represents a customer or staff identity.
type User struct {
	ID                  uuid.UUID
	FullName            string
	IDNumber            string
	AccountNumber       string
	Email               *string
	PasswordHash        string
	Role                Role
	FailedLoginAttempts int
	Lock                lockout.State
	IsActive            bool
	LastLogin           *time.Time
	MFA                 MFAState
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsLocked returns true if the account is locked at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.Lock.IsLocked(now)
}

// MFALabel is the account label shown in authenticator apps.
func (u *User) MFALabel() string {
	if u.Email != nil && *u.Email != "" {
		return *u.Email
	}
	return u.AccountNumber
}

// CheckRole reports whether u may hold r. Staff sign in by email, so a staff
// role needs an email address on the account.
func (u *User) CheckRole(r Role) error {
	if r.IsStaff() && (u.Email == nil || *u.Email == "") {
		return StaffRoleNeedsEmail()
	}
	return nil
}

// StaffRoleNeedsEmail is returned when a staff role is given to an account
// without an email address.
func StaffRoleNeedsEmail() *ValidationError {
	return NewValidationError("role", "staff roles require an email address")
}

// Principal returns the identity carried by a session token for this user.
func (u *User) Principal() Principal {
	return Principal{
		UserID:        u.ID,
		Role:          u.Role,
		AccountNumber: u.AccountNumber,
	}
}

// Principal is the authenticated caller of a protected operation.
type Principal struct {
	UserID        uuid.UUID
	Role          Role
	AccountNumber string
}

// IdentifierKind selects which unique attribute a login resolves against.
type IdentifierKind int

const (
	// IdentifierAccountNumber is the customer login path.
	IdentifierAccountNumber IdentifierKind = iota + 1
	// IdentifierEmail is the staff login path.
	IdentifierEmail
)

func (k IdentifierKind) String() string {
	switch k {
	case IdentifierAccountNumber:
		return "account_number"
	case IdentifierEmail:
		return "email"
	}
	return "unknown"
}

// Identifier is a login identifier tagged with its kind.
type Identifier struct {
	Kind  IdentifierKind
	Value string
}

// AccountNumberIdentifier builds a customer login identifier.
func AccountNumberIdentifier(accountNumber string) Identifier {
	return Identifier{Kind: IdentifierAccountNumber, Value: accountNumber}
}

// EmailIdentifier builds a staff login identifier.
func EmailIdentifier(email string) Identifier {
	return Identifier{Kind: IdentifierEmail, Value: email}
}

// UserView is the outward representation of a user. It never carries secrets.
type UserView struct {
	ID            uuid.UUID  `json:"id"`
	FullName      string     `json:"full_name"`
	AccountNumber string     `json:"account_number"`
	Email         *string    `json:"email,omitempty"`
	Role          Role       `json:"role"`
	IsActive      bool       `json:"is_active"`
	MFAEnabled    bool       `json:"mfa_enabled"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// View returns the outward representation of the user.
func (u *User) View() UserView {
	return UserView{
		ID:            u.ID,
		FullName:      u.FullName,
		AccountNumber: u.AccountNumber,
		Email:         u.Email,
		Role:          u.Role,
		IsActive:      u.IsActive,
		MFAEnabled:    u.MFA.Status() == MFAStatusEnabled,
		LastLogin:     u.LastLogin,
		CreatedAt:     u.CreatedAt,
	}
}

// AccessUpdate is an administrative change to an account. Nil fields are unchanged.
type AccessUpdate struct {
	IsActive *bool
	Role     *Role
}

// Empty reports whether the update changes nothing.
func (u AccessUpdate) Empty() bool {
	return u.IsActive == nil && u.Role == nil
}
