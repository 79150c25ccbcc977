package payment

import (
	"strconv"
	"strings"

	"github.com/tendant/payportal/pkg/domain"
)

// ParseAmount converts a decimal string in major units to cents. Digits past
// the second decimal are rounded half up. The result must lie in (0, 1e9].
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" || !allDigits(whole) || !allDigits(frac) || len(whole) > 10 {
		return 0, domain.NewValidationError("amount", "must be a decimal amount")
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, domain.NewValidationError("amount", "must be a decimal amount")
	}

	var cents int64
	for i := 0; i < 2; i++ {
		cents *= 10
		if i < len(frac) {
			cents += int64(frac[i] - '0')
		}
	}
	if len(frac) > 2 && frac[2] >= '5' {
		cents++
	}

	total := units*100 + cents
	if total <= 0 {
		return 0, domain.NewValidationError("amount", "must be greater than zero")
	}
	if total > domain.MaxPaymentAmountCents {
		return 0, domain.NewValidationError("amount", "must not exceed 1000000000.00")
	}
	return total, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
