// Package core holds the domain values of the ledger: money, transaction
// kinds, recurrence rules and the three transaction variants.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in integer minor units (cents) plus an ISO-4217
// currency code. Amounts are always positive; the transaction kind carries
// the sign. All arithmetic stays in cents so a ledger never accumulates
// floating-point error.
type Money struct {
	Cents    int64
	Currency string
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	if len(m.Currency) != 3 {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns the sum of two amounts. Mixing currencies is an error;
// the tracker stores currency per transaction but never converts.
func (m Money) Add(o Money) (Money, error) {
	if !strings.EqualFold(m.Currency, o.Currency) {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{Cents: m.Cents + o.Cents, Currency: m.Currency}, nil
}

// String renders the amount as an exact decimal, e.g. 1234 -> "12.34".
func (m Money) String() string {
	return decimal.New(m.Cents, -2).StringFixed(2)
}

// ParseAmount converts a decimal string ("12.34", "12,34") to cents with
// half-up rounding on the third decimal place. Zero and negative values
// are rejected.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if !cents.IsPositive() {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// FormatCents renders a signed cents value as an exact decimal string.
// Used at the API boundary where amounts must be decimal-string safe.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
