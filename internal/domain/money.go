package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits stored for money values.
const AmountScale = 2

// maxAmount bounds amounts to what NUMERIC(12,2) can hold.
var maxAmount = decimal.New(1, 10)

// ValidateAmount rejects non-positive, oversized, or over-precise amounts.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if d.GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("%w: %s exceeds maximum", ErrInvalidAmount, d.String())
	}
	if !d.Equal(d.Truncate(AmountScale)) {
		return fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, AmountScale)
	}
	return nil
}

// ParseAmount parses a decimal string and validates it.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Decimal{}, err
	}
	return d, nil
}
