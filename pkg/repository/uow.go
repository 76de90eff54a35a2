package repository

import "context"

// UnitOfWork defines the contract for transactional work and repository access.
//
// Repositories obtained from the UnitOfWork passed to Do share its
// transaction, so every write inside fn commits or rolls back together.
type UnitOfWork interface {
	// Do executes fn within a transaction boundary. If fn returns an error
	// the transaction is rolled back.
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error

	OwnerRepository() (OwnerRepository, error)
	TransactionRepository() (TransactionRepository, error)
	FiatTransactionRepository() (FiatTransactionRepository, error)
}
