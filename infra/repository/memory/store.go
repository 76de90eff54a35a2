// Package memory implements the repository contracts on process memory for
// development and tests. A unit of work runs against a copy of the data
// that replaces the original only when the unit succeeds.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/amirasaad/settlement/pkg/domain"
	repo "github.com/amirasaad/settlement/pkg/repository"
	"github.com/google/uuid"
)

type state struct {
	owners map[uuid.UUID]domain.Owner
	txs    map[uuid.UUID]domain.Transaction
	fiat   []domain.FiatTransaction
}

func newState() *state {
	return &state{
		owners: make(map[uuid.UUID]domain.Owner),
		txs:    make(map[uuid.UUID]domain.Transaction),
	}
}

func (s *state) clone() *state {
	c := &state{
		owners: make(map[uuid.UUID]domain.Owner, len(s.owners)),
		txs:    make(map[uuid.UUID]domain.Transaction, len(s.txs)),
		fiat:   append([]domain.FiatTransaction(nil), s.fiat...),
	}
	for k, v := range s.owners {
		c.owners[k] = v
	}
	for k, v := range s.txs {
		c.txs[k] = v
	}
	return c
}

// UoW is an in-memory repository.UnitOfWork.
type UoW struct {
	mu   *sync.Mutex
	root **state
	tx   *state
}

// NewUoW returns an empty store.
func NewUoW() *UoW {
	st := newState()
	return &UoW{mu: &sync.Mutex{}, root: &st}
}

// Do implements repository.UnitOfWork. Units are serialized.
func (u *UoW) Do(ctx context.Context, fn func(uow repo.UnitOfWork) error) error {
	if u.tx != nil {
		return fn(u)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	work := (*u.root).clone()
	if err := fn(&UoW{mu: u.mu, root: u.root, tx: work}); err != nil {
		return err
	}
	*u.root = work
	return nil
}

// view runs fn against the unit's working copy, or against the committed
// data under the store lock when called outside a unit.
func (u *UoW) view(fn func(s *state) error) error {
	if u.tx != nil {
		return fn(u.tx)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return fn(*u.root)
}

// OwnerRepository implements repository.UnitOfWork.
func (u *UoW) OwnerRepository() (repo.OwnerRepository, error) { return ownerRepository{u}, nil }

// TransactionRepository implements repository.UnitOfWork.
func (u *UoW) TransactionRepository() (repo.TransactionRepository, error) {
	return transactionRepository{u}, nil
}

// FiatTransactionRepository implements repository.UnitOfWork.
func (u *UoW) FiatTransactionRepository() (repo.FiatTransactionRepository, error) {
	return fiatRepository{u}, nil
}

type ownerRepository struct{ u *UoW }

func (r ownerRepository) Create(_ context.Context, owner *domain.Owner) error {
	return r.u.view(func(s *state) error {
		for _, o := range s.owners {
			if strings.EqualFold(o.Email, owner.Email) {
				return domain.ErrEmailTaken
			}
		}
		if _, ok := s.owners[owner.ID]; ok {
			return domain.ErrAlreadyExists
		}
		s.owners[owner.ID] = *owner
		return nil
	})
}

func (r ownerRepository) Get(_ context.Context, id uuid.UUID) (*domain.Owner, error) {
	var out *domain.Owner
	err := r.u.view(func(s *state) error {
		o, ok := s.owners[id]
		if !ok {
			return domain.ErrOwnerNotFound
		}
		out = &o
		return nil
	})
	return out, err
}

func (r ownerRepository) GetByEmail(_ context.Context, email string) (*domain.Owner, error) {
	var out *domain.Owner
	err := r.u.view(func(s *state) error {
		for _, o := range s.owners {
			if strings.EqualFold(o.Email, email) {
				out = &o
				return nil
			}
		}
		return domain.ErrOwnerNotFound
	})
	return out, err
}

func (r ownerRepository) UpdateWallet(_ context.Context, wallet domain.Wallet) error {
	return r.u.view(func(s *state) error {
		o, ok := s.owners[wallet.OwnerID]
		if !ok || o.Wallet.ID != wallet.ID {
			return domain.ErrOwnerNotFound
		}
		o.Wallet = wallet
		s.owners[o.ID] = o
		return nil
	})
}

func (r ownerRepository) Delete(_ context.Context, id uuid.UUID) error {
	return r.u.view(func(s *state) error {
		if _, ok := s.owners[id]; !ok {
			return domain.ErrOwnerNotFound
		}
		delete(s.owners, id)
		kept := s.fiat[:0:0]
		for _, f := range s.fiat {
			if f.OwnerID != id {
				kept = append(kept, f)
			}
		}
		s.fiat = kept
		for txID, tx := range s.txs {
			if tx.OriginOwnerID != nil && *tx.OriginOwnerID == id {
				tx.OriginOwnerID = nil
			}
			if tx.DestinationOwnerID != nil && *tx.DestinationOwnerID == id {
				tx.DestinationOwnerID = nil
			}
			if tx.OriginOwnerID == nil && tx.DestinationOwnerID == nil {
				delete(s.txs, txID)
				continue
			}
			s.txs[txID] = tx
		}
		return nil
	})
}

type transactionRepository struct{ u *UoW }

func (r transactionRepository) Create(_ context.Context, tx *domain.Transaction) error {
	return r.u.view(func(s *state) error {
		if _, ok := s.txs[tx.ID]; ok {
			return domain.ErrAlreadyExists
		}
		s.txs[tx.ID] = *tx
		return nil
	})
}

func (r transactionRepository) Get(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := r.u.view(func(s *state) error {
		tx, ok := s.txs[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = &tx
		return nil
	})
	return out, err
}

func (r transactionRepository) SetHash(_ context.Context, id uuid.UUID, hash string) error {
	return r.u.view(func(s *state) error {
		tx, ok := s.txs[id]
		if !ok {
			return domain.ErrNotFound
		}
		if tx.Status.IsTerminal() {
			return domain.ErrAlreadyFinal
		}
		tx.BlockchainTxHash = hash
		s.txs[id] = tx
		return nil
	})
}

func (r transactionRepository) Finalize(_ context.Context, id uuid.UUID, status domain.Status, hash string) error {
	return r.u.view(func(s *state) error {
		tx, ok := s.txs[id]
		if !ok {
			return domain.ErrNotFound
		}
		if err := tx.Finalize(status, hash); err != nil {
			return err
		}
		s.txs[id] = tx
		return nil
	})
}

func (r transactionRepository) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*domain.Transaction, error) {
	return r.list(func(tx *domain.Transaction) bool { return tx.InvolvesOwner(ownerID) }, false, 0)
}

func (r transactionRepository) ListPendingBefore(_ context.Context, t time.Time, limit int) ([]*domain.Transaction, error) {
	return r.list(func(tx *domain.Transaction) bool {
		return tx.Status == domain.StatusPending && tx.TransactionDate.Before(t)
	}, true, limit)
}

func (r transactionRepository) list(match func(*domain.Transaction) bool, asc bool, limit int) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	err := r.u.view(func(s *state) error {
		for _, tx := range s.txs {
			if match(&tx) {
				out = append(out, &tx)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if asc {
			return out[i].TransactionDate.Before(out[j].TransactionDate)
		}
		return out[i].TransactionDate.After(out[j].TransactionDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

type fiatRepository struct{ u *UoW }

func (r fiatRepository) Create(_ context.Context, rows ...domain.FiatTransaction) error {
	return r.u.view(func(s *state) error {
		s.fiat = append(s.fiat, rows...)
		return nil
	})
}

func (r fiatRepository) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]domain.FiatTransaction, error) {
	var out []domain.FiatTransaction
	err := r.u.view(func(s *state) error {
		for _, f := range s.fiat {
			if f.OwnerID == ownerID {
				out = append(out, f)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TransactionDate.After(out[j].TransactionDate)
	})
	return out, err
}
