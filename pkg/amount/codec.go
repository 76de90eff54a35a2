// Package amount converts between human-facing fixed-point decimals and the
// integer representation used by the settlement ledger and the chain.
//
// Invariants:
//   - Every decimal carries at most Scale fractional digits.
//   - ToDecimal(ToLedgerInteger(d)) == d for every such d.
//   - Nothing is ever truncated silently: excess precision is an error.
package amount

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits of every ledger amount.
const Scale int32 = 2

var (
	// ErrPrecisionLoss is returned when a decimal carries more than Scale fractional digits.
	ErrPrecisionLoss = errors.New("amount has more fractional digits than the ledger supports")

	// ErrOverflow is returned when a ledger integer does not fit in an int64.
	ErrOverflow = errors.New("amount exceeds the ledger integer range")
)

// ToLedgerInteger multiplies d by 10^Scale and rounds half-up to an integer.
// It fails with ErrPrecisionLoss when the rounding would change the value.
func ToLedgerInteger(d decimal.Decimal) (*big.Int, error) {
	scaled := d.Shift(Scale)
	rounded := scaled.Round(0)
	if !rounded.Equal(scaled) {
		return nil, ErrPrecisionLoss
	}
	return rounded.BigInt(), nil
}

// ToLedgerInt64 is ToLedgerInteger for callers that need a machine integer.
func ToLedgerInt64(d decimal.Decimal) (int64, error) {
	i, err := ToLedgerInteger(d)
	if err != nil {
		return 0, err
	}
	if !i.IsInt64() {
		return 0, ErrOverflow
	}
	return i.Int64(), nil
}

// ToDecimal divides i by 10^Scale with Scale fractional digits.
func ToDecimal(i *big.Int) decimal.Decimal {
	if i == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(i, -Scale).Round(Scale)
}

// FromInt64 is ToDecimal for machine integers.
func FromInt64(i int64) decimal.Decimal {
	return decimal.New(i, -Scale)
}

// Validate reports whether d can be represented on the ledger without loss.
func Validate(d decimal.Decimal) error {
	_, err := ToLedgerInteger(d)
	return err
}

// Format renders d with exactly Scale fractional digits, e.g. "12.30".
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
