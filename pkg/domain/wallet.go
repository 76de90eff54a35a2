package domain

import (
	"time"

	"github.com/amirasaad/settlement/pkg/amount"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet carries the fiat and crypto balances of one owner.
//
// Invariants:
//   - Balances are never negative at rest.
//   - Every mutation is rejected before it is applied when it would break
//     the invariant, so a failed call leaves the wallet untouched.
type Wallet struct {
	ID            uuid.UUID
	OwnerID       uuid.UUID
	FiatBalance   decimal.Decimal
	CryptoBalance decimal.Decimal
	Address       string
	UpdatedAt     time.Time
}

// NewWallet returns an empty wallet for ownerID.
func NewWallet(ownerID uuid.UUID, address string) Wallet {
	return Wallet{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		FiatBalance:   decimal.Zero,
		CryptoBalance: decimal.Zero,
		Address:       address,
		UpdatedAt:     time.Now().UTC(),
	}
}

// ValidateAmount checks that amt is positive and representable on the ledger.
func ValidateAmount(amt decimal.Decimal) error {
	if !amt.IsPositive() {
		return ErrAmountMustBePositive
	}
	return amount.Validate(amt)
}

// CreditFiat adds amt to the fiat balance.
func (w *Wallet) CreditFiat(amt decimal.Decimal) error {
	if err := ValidateAmount(amt); err != nil {
		return err
	}
	w.FiatBalance = w.FiatBalance.Add(amt)
	w.touch()
	return nil
}

// DebitFiat removes amt from the fiat balance.
func (w *Wallet) DebitFiat(amt decimal.Decimal) error {
	if err := w.CanDebitFiat(amt); err != nil {
		return err
	}
	w.FiatBalance = w.FiatBalance.Sub(amt)
	w.touch()
	return nil
}

// CanDebitFiat reports whether DebitFiat(amt) would succeed.
func (w *Wallet) CanDebitFiat(amt decimal.Decimal) error {
	if err := ValidateAmount(amt); err != nil {
		return err
	}
	if w.FiatBalance.LessThan(amt) {
		return ErrInsufficientFunds
	}
	return nil
}

// CreditCrypto adds amt to the crypto balance.
func (w *Wallet) CreditCrypto(amt decimal.Decimal) error {
	if err := ValidateAmount(amt); err != nil {
		return err
	}
	w.CryptoBalance = w.CryptoBalance.Add(amt)
	w.touch()
	return nil
}

// DebitCrypto removes amt from the crypto balance.
func (w *Wallet) DebitCrypto(amt decimal.Decimal) error {
	if err := w.CanDebitCrypto(amt); err != nil {
		return err
	}
	w.CryptoBalance = w.CryptoBalance.Sub(amt)
	w.touch()
	return nil
}

// CanDebitCrypto reports whether DebitCrypto(amt) would succeed.
func (w *Wallet) CanDebitCrypto(amt decimal.Decimal) error {
	if err := ValidateAmount(amt); err != nil {
		return err
	}
	if w.CryptoBalance.LessThan(amt) {
		return ErrInsufficientFunds
	}
	return nil
}

func (w *Wallet) touch() {
	w.UpdatedAt = time.Now().UTC()
}
