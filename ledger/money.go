package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fixed-point amounts with 2 fractional digits
// =============================================================================
// All monetary amounts are decimal with at most 2 fractional digits.
// "Balanced" means exact equality on minor units (cents); floating-point
// tolerance exists only at the input-parsing boundary, never in storage.

// ValidMinorUnits reports whether the amount has at most 2 decimal places.
func ValidMinorUnits(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// Cents returns the amount as integer minor units. Callers must have
// validated the amount with ValidMinorUnits first.
func Cents(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

// FromCents converts integer minor units back to a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ParseAmount parses a non-negative monetary amount from its string form,
// rejecting sub-cent precision.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q", ErrValidation, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: amount %s is negative", ErrValidation, s)
	}
	if !ValidMinorUnits(d) {
		return decimal.Zero, fmt.Errorf("%w: amount %s has sub-cent precision", ErrValidation, s)
	}
	return d, nil
}

// FormatAmount renders an amount with exactly 2 decimal places.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// MustParseDecimal is a test/seed helper; it returns zero on bad input.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
