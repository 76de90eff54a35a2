package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the settlement state of a ledger entry.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// IsTerminal reports whether s will never change again.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Concept describes why a crypto transaction exists.
type Concept string

const (
	ConceptBuy      Concept = "BUY"
	ConceptSell     Concept = "SELL"
	ConceptTransfer Concept = "TRANSFER"
)

// Transaction is a crypto or peer ledger entry.
//
// Invariants:
//   - Amount is positive.
//   - Status starts PENDING (or SUCCESS for off-chain transfers) and moves
//     to a terminal state at most once.
type Transaction struct {
	ID                 uuid.UUID
	OriginOwnerID      *uuid.UUID
	DestinationOwnerID *uuid.UUID
	Amount             decimal.Decimal
	ConversionRate     decimal.Decimal
	Concept            Concept
	BlockchainTxHash   string
	Status             Status
	TransactionDate    time.Time
}

// NewPendingTransaction opens a settlement-backed transaction.
func NewPendingTransaction(
	concept Concept,
	origin, destination *uuid.UUID,
	amt, rate decimal.Decimal,
) (*Transaction, error) {
	if err := ValidateAmount(amt); err != nil {
		return nil, err
	}
	return &Transaction{
		ID:                 uuid.New(),
		OriginOwnerID:      origin,
		DestinationOwnerID: destination,
		Amount:             amt,
		ConversionRate:     rate,
		Concept:            concept,
		Status:             StatusPending,
		TransactionDate:    time.Now().UTC(),
	}, nil
}

// Finalize moves t to the terminal status, recording hash when non-empty.
func (t *Transaction) Finalize(status Status, hash string) error {
	if !status.IsTerminal() {
		return ErrInvalidStatus
	}
	if t.Status.IsTerminal() {
		return ErrAlreadyFinal
	}
	t.Status = status
	if hash != "" {
		t.BlockchainTxHash = hash
	}
	return nil
}

// InvolvesOwner reports whether id is on either side of t.
func (t *Transaction) InvolvesOwner(id uuid.UUID) bool {
	return (t.OriginOwnerID != nil && *t.OriginOwnerID == id) ||
		(t.DestinationOwnerID != nil && *t.DestinationOwnerID == id)
}

// FiatConcept describes why a fiat ledger entry exists.
type FiatConcept string

const (
	FiatConceptPayment        FiatConcept = "PAYMENT"
	FiatConceptReceipt        FiatConcept = "RECEIPT"
	FiatConceptDeposit        FiatConcept = "DEPOSIT"
	FiatConceptWithdrawal     FiatConcept = "WITHDRAWAL"
	FiatConceptCryptoPurchase FiatConcept = "CRYPTO_PURCHASE"
	FiatConceptCryptoSale     FiatConcept = "CRYPTO_SALE"
)

// FiatTransaction is a single-owner fiat ledger entry. Amount is signed:
// negative debits, positive credits.
type FiatTransaction struct {
	ID              uuid.UUID
	OwnerID         uuid.UUID
	Amount          decimal.Decimal
	Concept         FiatConcept
	Status          Status
	TransactionDate time.Time
}

// NewFiatTransaction builds a settled fiat entry dated at.
func NewFiatTransaction(ownerID uuid.UUID, signed decimal.Decimal, concept FiatConcept, at time.Time) FiatTransaction {
	return FiatTransaction{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		Amount:          signed,
		Concept:         concept,
		Status:          StatusSuccess,
		TransactionDate: at,
	}
}
