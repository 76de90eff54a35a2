package repository

import (
	"context"
	"time"

	"github.com/amirasaad/settlement/pkg/domain"
	"github.com/google/uuid"
)

// OwnerRepository defines data access for owners and their wallets.
type OwnerRepository interface {
	// Create inserts the owner and its wallet. Returns domain.ErrEmailTaken
	// when the email is already registered.
	Create(ctx context.Context, owner *domain.Owner) error
	// Get returns the owner with its wallet, or domain.ErrOwnerNotFound.
	Get(ctx context.Context, id uuid.UUID) (*domain.Owner, error)
	// GetByEmail returns the owner registered with email, or domain.ErrOwnerNotFound.
	GetByEmail(ctx context.Context, email string) (*domain.Owner, error)
	// UpdateWallet persists the balances of wallet.
	UpdateWallet(ctx context.Context, wallet domain.Wallet) error
	// Delete removes the owner, its wallet and its ledger rows.
	Delete(ctx context.Context, id uuid.UUID) error
}

// TransactionRepository defines data access for crypto and peer transactions.
type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	// Get returns the transaction, or domain.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	// SetHash records the chain hash of a transaction that is still PENDING.
	SetHash(ctx context.Context, id uuid.UUID, hash string) error
	// Finalize writes the terminal status only if the row is still PENDING.
	// Returns domain.ErrAlreadyFinal when it is not, domain.ErrNotFound when
	// the row does not exist.
	Finalize(ctx context.Context, id uuid.UUID, status domain.Status, hash string) error
	// ListByOwner returns the transactions naming owner on either side,
	// newest first.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Transaction, error)
	// ListPendingBefore returns up to limit PENDING transactions dated before t.
	ListPendingBefore(ctx context.Context, t time.Time, limit int) ([]*domain.Transaction, error)
}

// FiatTransactionRepository defines data access for fiat ledger rows.
type FiatTransactionRepository interface {
	// Create appends rows. Rows are never updated afterwards.
	Create(ctx context.Context, rows ...domain.FiatTransaction) error
	// ListByOwner returns the rows of owner, newest first.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.FiatTransaction, error)
}
