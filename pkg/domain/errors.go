package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Authentication errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked due to too many failed login attempts")
	ErrAccountDeactivated = errors.New("account deactivated")
	ErrInvalidToken       = errors.New("invalid token")
)

// MFA errors
var (
	ErrInvalidMFACode    = errors.New("invalid MFA code")
	ErrMFAAlreadyEnabled = errors.New("MFA is already enabled")
	ErrMFANotInitiated   = errors.New("MFA setup not initiated")
)

// Authorization and payment errors
var (
	ErrForbidden       = errors.New("insufficient role for this operation")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrStateConflict   = errors.New("payment is not in the required state")
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports malformed input, keyed by field name.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// AccountLockedError carries the remaining lockout time.
type AccountLockedError struct {
	Until            time.Time
	RemainingMinutes int
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("%s; try again in %d minute(s)", ErrAccountLocked.Error(), e.RemainingMinutes)
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// AuthorizationError reports that the caller's role may not perform an action.
type AuthorizationError struct {
	Required []Role
}

func (e *AuthorizationError) Error() string {
	roles := make([]string, len(e.Required))
	for i, r := range e.Required {
		roles[i] = string(r)
	}
	return fmt.Sprintf("%s (requires %s)", ErrForbidden.Error(), strings.Join(roles, " or "))
}

func (e *AuthorizationError) Is(target error) bool {
	return target == ErrForbidden
}

// Forbidden builds an AuthorizationError naming the roles that would be accepted.
func Forbidden(required ...Role) *AuthorizationError {
	return &AuthorizationError{Required: required}
}

// StateConflictError reports a payment action attempted from the wrong status.
type StateConflictError struct {
	PaymentID uuid.UUID
	Current   PaymentStatus
	Required  PaymentStatus
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("payment %s is %s, must be %s", e.PaymentID, e.Current, e.Required)
}

func (e *StateConflictError) Is(target error) bool {
	return target == ErrStateConflict
}
