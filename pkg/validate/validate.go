// Package validate wraps go-playground/validator with the field rules used by
// registration, staff creation and payment submission.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tendant/payportal/pkg/domain"
)

var (
	fullNamePattern = regexp.MustCompile(`^[\p{L} '.\-]{2,100}$`)
	digitsPattern   = regexp.MustCompile(`^[0-9]+$`)
	swiftPattern    = regexp.MustCompile(`^[A-Z]{4}[A-Z]{2}[A-Z0-9]{2}([A-Z0-9]{3})?$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	amountPattern   = regexp.MustCompile(`^[0-9]{1,10}(\.[0-9]{1,2})?$`)
)

// Validator validates request structs and reports failures as *domain.ValidationError.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator with the custom tags registered:
//
//	fullname  letters, spaces, apostrophes, hyphens and dots, 2-100 characters
//	digits    ASCII digits only
//	swift     BIC: 4 bank, 2 country, 2 location, optional 3 branch (uppercase)
//	currency  three uppercase letters
//	amount    decimal with at most two fraction digits
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json names so errors line up with request bodies.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "fullname", fullNamePattern)
	mustRegister(v, "digits", digitsPattern)
	mustRegister(v, "swift", swiftPattern)
	mustRegister(v, "currency", currencyPattern)
	mustRegister(v, "amount", amountPattern)

	return &Validator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, pattern *regexp.Regexp) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return pattern.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(fmt.Sprintf("validate: register %s: %v", tag, err))
	}
}

// Struct validates s. A nil return means every rule passed.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	verr := &domain.ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		verr.Fields[fe.Field()] = message(fe)
	}
	return verr
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "excluded_with":
		return "must not be combined with " + strings.ToLower(fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "fullname":
		return "may contain only letters, spaces, apostrophes, hyphens and dots (2-100 characters)"
	case "digits":
		return "must contain digits only"
	case "swift":
		return "must be a valid SWIFT/BIC code"
	case "currency":
		return "must be a three-letter currency code"
	case "amount":
		return "must be a decimal amount with at most two decimals"
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return fmt.Sprintf("failed on '%s' rule", fe.Tag())
}
