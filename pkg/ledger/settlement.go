package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/amirasaad/settlement/pkg/amount"
	"github.com/amirasaad/settlement/pkg/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FiatValue returns the fiat worth of a crypto amount at rate, rounded to
// ledger precision.
func FiatValue(crypto, rate decimal.Decimal) decimal.Decimal {
	return crypto.Mul(rate).Round(amount.Scale)
}

// ReservePurchase debits the fiat cost of buying crypto and opens the
// PENDING transaction that settlement will finalize.
func (s *Service) ReservePurchase(ctx context.Context, ownerID uuid.UUID, crypto, rate decimal.Decimal) (*domain.Transaction, error) {
	cost := FiatValue(crypto, rate)
	return s.reserve(ctx, ownerID, crypto, rate, func(w *domain.Wallet) error {
		return w.DebitFiat(cost)
	}, func() (*domain.Transaction, error) {
		return domain.NewPendingTransaction(domain.ConceptBuy, nil, &ownerID, crypto, rate)
	})
}

// ReserveSale debits the crypto being sold and opens the PENDING
// transaction that settlement will finalize.
func (s *Service) ReserveSale(ctx context.Context, ownerID uuid.UUID, crypto, rate decimal.Decimal) (*domain.Transaction, error) {
	return s.reserve(ctx, ownerID, crypto, rate, func(w *domain.Wallet) error {
		return w.DebitCrypto(crypto)
	}, func() (*domain.Transaction, error) {
		return domain.NewPendingTransaction(domain.ConceptSell, &ownerID, nil, crypto, rate)
	})
}

func (s *Service) reserve(
	ctx context.Context,
	ownerID uuid.UUID,
	crypto, rate decimal.Decimal,
	debit func(w *domain.Wallet) error,
	build func() (*domain.Transaction, error),
) (*domain.Transaction, error) {
	if err := domain.ValidateAmount(crypto); err != nil {
		return nil, err
	}
	if !rate.IsPositive() {
		return nil, fmt.Errorf("%w: conversion rate must be positive", domain.ErrValidation)
	}
	// The fiat leg is credited or refunded on finalize and must survive rounding.
	if value := FiatValue(crypto, rate); !value.IsPositive() {
		return nil, fmt.Errorf("%w: fiat value of %s at rate %s is %s",
			domain.ErrAmountMustBePositive, crypto, rate, amount.Format(value))
	}

	var tx *domain.Transaction
	err := s.locked(ctx, []uuid.UUID{ownerID}, func(r repos) error {
		owner, err := r.owners.Get(ctx, ownerID)
		if err != nil {
			return err
		}
		if err := debit(&owner.Wallet); err != nil {
			return err
		}
		if tx, err = build(); err != nil {
			return err
		}
		if err := r.owners.UpdateWallet(ctx, owner.Wallet); err != nil {
			return err
		}
		return r.txs.Create(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("settlement reserved", "transaction_id", tx.ID, "concept", tx.Concept, "owner_id", ownerID)
	return tx, nil
}

// RecordSubmission stores the chain hash of a submitted settlement so it
// can be reconciled if the receipt is never observed.
func (s *Service) RecordSubmission(ctx context.Context, txID uuid.UUID, hash string) error {
	txs, err := s.uow.TransactionRepository()
	if err != nil {
		return err
	}
	return txs.SetHash(ctx, txID, hash)
}

// Transaction returns the persisted transaction.
func (s *Service) Transaction(ctx context.Context, txID uuid.UUID) (*domain.Transaction, error) {
	txs, err := s.uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	return txs.Get(ctx, txID)
}

// Finalize writes the terminal status of a settlement exactly once.
// SUCCESS credits the receiving side and records the fiat leg; FAILURE
// returns the reservation to the owner. A transaction that is already
// terminal is left untouched and domain.ErrAlreadyFinal is returned.
func (s *Service) Finalize(ctx context.Context, txID uuid.UUID, outcome Outcome) (*domain.Transaction, error) {
	if !outcome.Status.IsTerminal() {
		return nil, domain.ErrInvalidStatus
	}
	current, err := s.Transaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, domain.ErrAlreadyFinal
	}
	ownerID, err := settlingOwner(current)
	if err != nil {
		return nil, err
	}

	var tx *domain.Transaction
	err = s.locked(ctx, []uuid.UUID{ownerID}, func(r repos) error {
		var err error
		if tx, err = r.txs.Get(ctx, txID); err != nil {
			return err
		}
		if err := tx.Finalize(outcome.Status, outcome.Hash); err != nil {
			return err
		}
		if err := r.txs.Finalize(ctx, txID, outcome.Status, outcome.Hash); err != nil {
			return err
		}

		owner, err := r.owners.Get(ctx, ownerID)
		if err != nil {
			return err
		}
		value := FiatValue(tx.Amount, tx.ConversionRate)
		switch {
		case tx.Concept == domain.ConceptBuy && outcome.Status == domain.StatusSuccess:
			err = owner.Wallet.CreditCrypto(tx.Amount)
			if err == nil {
				err = r.fiat.Create(ctx, domain.NewFiatTransaction(
					ownerID, value.Neg(), domain.FiatConceptCryptoPurchase, s.now()))
			}
		case tx.Concept == domain.ConceptBuy:
			err = owner.Wallet.CreditFiat(value)
		case outcome.Status == domain.StatusSuccess:
			err = owner.Wallet.CreditFiat(value)
			if err == nil {
				err = r.fiat.Create(ctx, domain.NewFiatTransaction(
					ownerID, value, domain.FiatConceptCryptoSale, s.now()))
			}
		default:
			err = owner.Wallet.CreditCrypto(tx.Amount)
		}
		if err != nil {
			return err
		}
		return r.owners.UpdateWallet(ctx, owner.Wallet)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("✅ settlement finalized", "transaction_id", txID, "status", outcome.Status)
	return tx, nil
}

// settlingOwner is the owner whose wallet a settlement reserves from.
func settlingOwner(tx *domain.Transaction) (uuid.UUID, error) {
	switch {
	case tx.Concept == domain.ConceptBuy && tx.DestinationOwnerID != nil:
		return *tx.DestinationOwnerID, nil
	case tx.Concept == domain.ConceptSell && tx.OriginOwnerID != nil:
		return *tx.OriginOwnerID, nil
	}
	return uuid.Nil, fmt.Errorf("%w: transaction %s is not settlement-backed", domain.ErrValidation, tx.ID)
}

// FiatHistory returns the fiat ledger rows of an existing owner.
func (s *Service) FiatHistory(ctx context.Context, ownerID uuid.UUID) ([]domain.FiatTransaction, error) {
	if _, err := s.Owner(ctx, ownerID); err != nil {
		return nil, err
	}
	fiat, err := s.uow.FiatTransactionRepository()
	if err != nil {
		return nil, err
	}
	return fiat.ListByOwner(ctx, ownerID)
}

// CryptoHistory returns the transactions naming an existing owner.
func (s *Service) CryptoHistory(ctx context.Context, ownerID uuid.UUID) ([]*domain.Transaction, error) {
	if _, err := s.Owner(ctx, ownerID); err != nil {
		return nil, err
	}
	txs, err := s.uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	return txs.ListByOwner(ctx, ownerID)
}

// Pending returns up to limit PENDING transactions dated before t.
func (s *Service) Pending(ctx context.Context, before time.Time, limit int) ([]*domain.Transaction, error) {
	txs, err := s.uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	return txs.ListPendingBefore(ctx, before, limit)
}
