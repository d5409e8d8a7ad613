// Package validation provides custom validation rules for the application.
package validation

import (
	"strings"

	validation "github.com/jellydator/validation"
	"github.com/shopspring/decimal"

	apperrors "github.com/allisson/orderflow/internal/errors"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// WeakEmail only checks that an address contains both "@" and ".".
// It is not an RFC 5322 validator and accepts many invalid addresses.
var WeakEmail = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.Contains(s, "@") && strings.Contains(s, ".")
	},
	validation.NewError("validation_email_format", "invalid email format"),
)

// PositiveDecimal validates that a decimal.Decimal is strictly greater than zero.
var PositiveDecimal = validation.By(func(value interface{}) error {
	var d decimal.Decimal
	switch v := value.(type) {
	case decimal.Decimal:
		d = v
	case *decimal.Decimal:
		if v == nil {
			return nil // Let Required handle nil values
		}
		d = *v
	default:
		return validation.NewError("validation_decimal_type", "must be a number")
	}
	if !d.IsPositive() {
		return validation.NewError("validation_positive", "must be a positive number")
	}
	return nil
})
