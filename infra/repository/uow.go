package repository

import (
	"context"

	repo "github.com/amirasaad/settlement/pkg/repository"
	"gorm.io/gorm"
)

// UoW provides transaction boundary and repository access in one abstraction.
// All repositories returned inside Do share the same *gorm.DB session.
type UoW struct {
	db *gorm.DB
	tx *gorm.DB
}

// NewUoW creates a new UoW for the given *gorm.DB.
func NewUoW(db *gorm.DB) *UoW {
	return &UoW{db: db}
}

// Do runs fn in a transaction boundary. Nested calls join the open transaction.
func (u *UoW) Do(ctx context.Context, fn func(uow repo.UnitOfWork) error) error {
	if u.tx != nil {
		return fn(u)
	}
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&UoW{db: u.db, tx: tx})
	})
}

func (u *UoW) session() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

// OwnerRepository implements repository.UnitOfWork.
func (u *UoW) OwnerRepository() (repo.OwnerRepository, error) {
	return NewOwnerRepository(u.session()), nil
}

// TransactionRepository implements repository.UnitOfWork.
func (u *UoW) TransactionRepository() (repo.TransactionRepository, error) {
	return NewTransactionRepository(u.session()), nil
}

// FiatTransactionRepository implements repository.UnitOfWork.
func (u *UoW) FiatTransactionRepository() (repo.FiatTransactionRepository, error) {
	return NewFiatTransactionRepository(u.session()), nil
}
