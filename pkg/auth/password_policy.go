package auth

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tendant/payportal/internal/config"
)

// maxPasswordLength bounds the Argon2 input.
const maxPasswordLength = 128

// PasswordPolicy defines password complexity requirements.
type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// NewPasswordPolicy creates a PasswordPolicy from config.
func NewPasswordPolicy(cfg config.PasswordPolicyConfig) *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:        cfg.MinLength,
		RequireUppercase: cfg.RequireUppercase,
		RequireLowercase: cfg.RequireLowercase,
		RequireNumber:    cfg.RequireNumber,
		RequireSpecial:   cfg.RequireSpecial,
	}
}

// ValidatePassword checks a password against every rule and reports all that fail.
func (p *PasswordPolicy) ValidatePassword(password string) error {
	var missing []string

	length := utf8.RuneCountInString(password)
	if p.MinLength > 0 && length < p.MinLength {
		missing = append(missing, fmt.Sprintf("at least %d characters", p.MinLength))
	}
	if length > maxPasswordLength {
		return fmt.Errorf("password must be at most %d characters long", maxPasswordLength)
	}
	if p.RequireUppercase && !containsClass(password, unicode.IsUpper) {
		missing = append(missing, "one uppercase letter")
	}
	if p.RequireLowercase && !containsClass(password, unicode.IsLower) {
		missing = append(missing, "one lowercase letter")
	}
	if p.RequireNumber && !containsClass(password, unicode.IsDigit) {
		missing = append(missing, "one number")
	}
	if p.RequireSpecial && !containsClass(password, isSpecial) {
		missing = append(missing, "one special character")
	}

	if len(missing) > 0 {
		return fmt.Errorf("password must contain %s", strings.Join(missing, ", "))
	}
	return nil
}

func containsClass(s string, class func(rune) bool) bool {
	for _, r := range s {
		if class(r) {
			return true
		}
	}
	return false
}

func isSpecial(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
}
