// Package money converts between decimal currency strings and the int64
// minor-unit amounts used throughout the ledger.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnitExponent is the number of decimal places of the ledger currency
const MinorUnitExponent = 2

var (
	ErrMalformedAmount  = errors.New("amount is not a decimal number")
	ErrTooManyDecimals  = errors.New("amount has more than two decimal places")
	ErrAmountOutOfRange = errors.New("amount is out of range")
	ErrNonPositive      = errors.New("amount must be positive")
)

var minorUnitFactor = decimal.New(1, MinorUnitExponent)

// ParseAmount converts a decimal string such as "15.50" into minor units (1550).
// Only strictly positive amounts are accepted.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrMalformedAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	if !d.IsPositive() {
		return 0, ErrNonPositive
	}

	minor := d.Mul(minorUnitFactor)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, ErrTooManyDecimals
	}
	if minor.GreaterThan(decimal.NewFromInt(1<<62)) {
		return 0, ErrAmountOutOfRange
	}

	return minor.IntPart(), nil
}

// Format renders minor units as a fixed two-decimal string, e.g. 1550 -> "15.50"
func Format(minor int64) string {
	return decimal.New(minor, -MinorUnitExponent).StringFixed(MinorUnitExponent)
}
