package auth

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/tendant/payportal/pkg/domain"
)

// Common disposable email domains to block (can be extended)
var disposableDomains = map[string]bool{
	"tempmail.com":      true,
	"10minutemail.com":  true,
	"guerrillamail.com": true,
	"mailinator.com":    true,
	"throwaway.email":   true,
}

// Email validation regex (stricter than RFC 5322 for practical use)
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

const maxEmailLength = 254 // RFC 5321

// ValidateEmail validates a staff email address. Failures are *domain.ValidationError
// on the "email" field.
func ValidateEmail(email string, strict bool, blockDisposable bool) error {
	if email == "" {
		return domain.NewValidationError("email", "is required")
	}

	if len(email) > maxEmailLength {
		return domain.NewValidationError("email", fmt.Sprintf("is too long (max %d characters)", maxEmailLength))
	}

	normalized := NormalizeEmail(email)

	// Bare addresses only: "Name <a@b>" parses but is not accepted.
	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized {
		return domain.NewValidationError("email", "invalid email address format")
	}

	if strict && !emailRegex.MatchString(addr.Address) {
		return domain.NewValidationError("email", "invalid email address format")
	}

	if blockDisposable && disposableDomains[getDomain(addr.Address)] {
		return domain.NewValidationError("email", "disposable email addresses are not allowed")
	}

	return nil
}

// NormalizeEmail normalizes an email address by lowercasing and trimming.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// getDomain extracts the domain from an email address.
func getDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}
