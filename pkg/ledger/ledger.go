// Package ledger applies balance changes to wallets and writes the matching
// ledger rows. Every mutation holds the locks of the owners involved for
// its whole read-modify-write and commits in a single unit of work, so a
// rejected precondition never leaves a partial change behind.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/settlement/pkg/amount"
	"github.com/amirasaad/settlement/pkg/domain"
	"github.com/amirasaad/settlement/pkg/lock"
	"github.com/amirasaad/settlement/pkg/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service is the ledger mutator.
type Service struct {
	uow    repository.UnitOfWork
	locks  lock.Locker
	logger *slog.Logger
	now    func() time.Time
}

// New creates a ledger service. A nil locker falls back to an in-process one.
func New(uow repository.UnitOfWork, locks lock.Locker, logger *slog.Logger) *Service {
	if locks == nil {
		locks = lock.NewKeyed()
	}
	return &Service{
		uow:    uow,
		locks:  locks,
		logger: logger.With("component", "ledger"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Outcome is the observed result of a settlement.
type Outcome struct {
	Status domain.Status
	Hash   string
}

// Transfer is the result of a peer fiat payment.
type Transfer struct {
	Debit     domain.FiatTransaction
	Credit    domain.FiatTransaction
	Sender    domain.Wallet
	Recipient domain.Wallet
}

type repos struct {
	owners repository.OwnerRepository
	txs    repository.TransactionRepository
	fiat   repository.FiatTransactionRepository
}

func open(uow repository.UnitOfWork) (repos, error) {
	var (
		r   repos
		err error
	)
	if r.owners, err = uow.OwnerRepository(); err != nil {
		return r, err
	}
	if r.txs, err = uow.TransactionRepository(); err != nil {
		return r, err
	}
	if r.fiat, err = uow.FiatTransactionRepository(); err != nil {
		return r, err
	}
	return r, nil
}

func ownerKey(id uuid.UUID) string { return "owner:" + id.String() }

// locked runs fn in one unit of work while holding the locks of owners.
func (s *Service) locked(ctx context.Context, owners []uuid.UUID, fn func(r repos) error) error {
	keys := make([]string, 0, len(owners))
	for _, id := range owners {
		keys = append(keys, ownerKey(id))
	}
	unlock, err := lock.All(ctx, s.locks, keys...)
	if err != nil {
		return fmt.Errorf("acquire owner lock: %w", err)
	}
	defer unlock()

	return s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		r, err := open(uow)
		if err != nil {
			return err
		}
		return fn(r)
	})
}

// OpenWallet registers a new owner with an empty wallet.
func (s *Service) OpenWallet(
	ctx context.Context,
	name, email string,
	ownerType domain.OwnerType,
	address string,
) (*domain.Owner, error) {
	owner, err := domain.NewOwner(name, email, ownerType, address)
	if err != nil {
		return nil, err
	}
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		owners, err := uow.OwnerRepository()
		if err != nil {
			return err
		}
		if _, err := owners.GetByEmail(ctx, owner.Email); err == nil {
			return domain.ErrEmailTaken
		} else if !errors.Is(err, domain.ErrOwnerNotFound) {
			return err
		}
		return owners.Create(ctx, owner)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("✅ wallet opened", "owner_id", owner.ID)
	return owner, nil
}

// CloseWallet deletes the owner, its wallet and its ledger rows.
func (s *Service) CloseWallet(ctx context.Context, ownerID uuid.UUID) error {
	err := s.locked(ctx, []uuid.UUID{ownerID}, func(r repos) error {
		return r.owners.Delete(ctx, ownerID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("✅ wallet closed", "owner_id", ownerID)
	return nil
}

// Owner returns the owner and its current balances.
func (s *Service) Owner(ctx context.Context, ownerID uuid.UUID) (*domain.Owner, error) {
	owners, err := s.uow.OwnerRepository()
	if err != nil {
		return nil, err
	}
	return owners.Get(ctx, ownerID)
}

// OwnerByEmail returns the owner registered with email.
func (s *Service) OwnerByEmail(ctx context.Context, email string) (*domain.Owner, error) {
	owners, err := s.uow.OwnerRepository()
	if err != nil {
		return nil, err
	}
	return owners.GetByEmail(ctx, email)
}

// Transfer moves amt of fiat from one owner to another and writes the
// PAYMENT and RECEIPT rows with the same date.
func (s *Service) Transfer(ctx context.Context, from, to uuid.UUID, amt decimal.Decimal) (*Transfer, error) {
	if from == to {
		return nil, domain.ErrSameOwner
	}
	if err := domain.ValidateAmount(amt); err != nil {
		return nil, err
	}

	var out Transfer
	err := s.locked(ctx, []uuid.UUID{from, to}, func(r repos) error {
		sender, err := r.owners.Get(ctx, from)
		if err != nil {
			return err
		}
		recipient, err := r.owners.Get(ctx, to)
		if err != nil {
			return err
		}
		if err := sender.Wallet.DebitFiat(amt); err != nil {
			return err
		}
		if err := recipient.Wallet.CreditFiat(amt); err != nil {
			return err
		}
		if err := r.owners.UpdateWallet(ctx, sender.Wallet); err != nil {
			return err
		}
		if err := r.owners.UpdateWallet(ctx, recipient.Wallet); err != nil {
			return err
		}

		at := s.now()
		out = Transfer{
			Debit:     domain.NewFiatTransaction(from, amt.Neg(), domain.FiatConceptPayment, at),
			Credit:    domain.NewFiatTransaction(to, amt, domain.FiatConceptReceipt, at),
			Sender:    sender.Wallet,
			Recipient: recipient.Wallet,
		}
		return r.fiat.Create(ctx, out.Debit, out.Credit)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("fiat transfer applied", "from", from, "to", to, "amount", amount.Format(amt))
	return &out, nil
}

// Deposit credits amt of fiat to the owner.
func (s *Service) Deposit(ctx context.Context, ownerID uuid.UUID, amt decimal.Decimal) (domain.FiatTransaction, domain.Wallet, error) {
	return s.single(ctx, ownerID, amt, domain.FiatConceptDeposit, func(w *domain.Wallet) error {
		return w.CreditFiat(amt)
	})
}

// Withdraw debits amt of fiat from the owner.
func (s *Service) Withdraw(ctx context.Context, ownerID uuid.UUID, amt decimal.Decimal) (domain.FiatTransaction, domain.Wallet, error) {
	return s.single(ctx, ownerID, amt.Neg(), domain.FiatConceptWithdrawal, func(w *domain.Wallet) error {
		return w.DebitFiat(amt)
	})
}

func (s *Service) single(
	ctx context.Context,
	ownerID uuid.UUID,
	signed decimal.Decimal,
	concept domain.FiatConcept,
	apply func(w *domain.Wallet) error,
) (domain.FiatTransaction, domain.Wallet, error) {
	var (
		row    domain.FiatTransaction
		wallet domain.Wallet
	)
	err := s.locked(ctx, []uuid.UUID{ownerID}, func(r repos) error {
		owner, err := r.owners.Get(ctx, ownerID)
		if err != nil {
			return err
		}
		if err := apply(&owner.Wallet); err != nil {
			return err
		}
		if err := r.owners.UpdateWallet(ctx, owner.Wallet); err != nil {
			return err
		}
		row = domain.NewFiatTransaction(ownerID, signed, concept, s.now())
		wallet = owner.Wallet
		return r.fiat.Create(ctx, row)
	})
	return row, wallet, err
}

// TransferCrypto moves amt of crypto between owners at a 1:1 rate. The
// transfer is off-chain and recorded as settled immediately.
func (s *Service) TransferCrypto(ctx context.Context, from, to uuid.UUID, amt decimal.Decimal) (*domain.Transaction, error) {
	if from == to {
		return nil, domain.ErrSameOwner
	}
	if err := domain.ValidateAmount(amt); err != nil {
		return nil, err
	}

	var tx *domain.Transaction
	err := s.locked(ctx, []uuid.UUID{from, to}, func(r repos) error {
		sender, err := r.owners.Get(ctx, from)
		if err != nil {
			return err
		}
		recipient, err := r.owners.Get(ctx, to)
		if err != nil {
			return err
		}
		if err := sender.Wallet.DebitCrypto(amt); err != nil {
			return err
		}
		if err := recipient.Wallet.CreditCrypto(amt); err != nil {
			return err
		}
		if err := r.owners.UpdateWallet(ctx, sender.Wallet); err != nil {
			return err
		}
		if err := r.owners.UpdateWallet(ctx, recipient.Wallet); err != nil {
			return err
		}
		tx = &domain.Transaction{
			ID:                 uuid.New(),
			OriginOwnerID:      &from,
			DestinationOwnerID: &to,
			Amount:             amt,
			ConversionRate:     decimal.NewFromInt(1),
			Concept:            domain.ConceptTransfer,
			Status:             domain.StatusSuccess,
			TransactionDate:    s.now(),
		}
		return r.txs.Create(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}
