// Package settlement drives settlement-backed transactions from PENDING to
// a terminal status and publishes exactly one final outcome per request.
package settlement

import (
	"context"
	"errors"

	"github.com/amirasaad/settlement/pkg/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrSettlementTimeout is returned when no terminal status was observed
	// before the deadline. The transaction stays PENDING.
	ErrSettlementTimeout = errors.New("settlement: deadline exceeded")
	// ErrSettlementFailed is returned when the transaction ended FAILURE.
	ErrSettlementFailed = errors.New("settlement: failed")
	// ErrNotMined is returned by Settler.Receipt while the call is pending.
	ErrNotMined = errors.New("settlement: receipt not available")
)

// Order is an on-chain call backing a transaction.
type Order struct {
	TransactionID uuid.UUID
	Concept       domain.Concept
	Address       string
	Amount        decimal.Decimal
}

// Receipt is the observed result of a mined call.
type Receipt struct {
	Hash    string
	Success bool
	Block   uint64
}

// Settler submits orders to the chain and observes their receipts.
type Settler interface {
	// Submit broadcasts the call and returns its hash.
	Submit(ctx context.Context, order Order) (string, error)
	// Wait blocks until the call is mined or ctx is done.
	Wait(ctx context.Context, hash string) (Receipt, error)
	// Receipt returns the receipt, or ErrNotMined while it is pending.
	Receipt(ctx context.Context, hash string) (Receipt, error)
	// NewAddress returns a fresh wallet address.
	NewAddress(ctx context.Context) (string, error)
}
