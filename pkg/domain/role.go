package domain

import "fmt"

// Role is the closed set of roles a user can hold.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleEmployee, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether r logs in by email.
func (r Role) IsStaff() bool {
	switch r {
	case RoleEmployee, RoleAdmin:
		return true
	case RoleCustomer:
		return false
	}
	return false
}

// CanCreatePayments reports whether r may submit payments for itself.
func (r Role) CanCreatePayments() bool {
	switch r {
	case RoleCustomer:
		return true
	case RoleEmployee, RoleAdmin:
		return false
	}
	return false
}

// CanReviewPayments reports whether r may read every payment and move them through review.
func (r Role) CanReviewPayments() bool {
	switch r {
	case RoleEmployee, RoleAdmin:
		return true
	case RoleCustomer:
		return false
	}
	return false
}

// CanManageUsers reports whether r may create staff and edit accounts.
func (r Role) CanManageUsers() bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleCustomer, RoleEmployee:
		return false
	}
	return false
}
