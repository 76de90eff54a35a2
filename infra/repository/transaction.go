package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirasaad/settlement/pkg/domain"
	repo "github.com/amirasaad/settlement/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a transaction repository using the provided *gorm.DB.
func NewTransactionRepository(db *gorm.DB) repo.TransactionRepository {
	return &transactionRepository{db: db}
}

// Create implements repository.TransactionRepository.
func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	m := transactionToModel(tx)
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
}

// Get implements repository.TransactionRepository.
func (r *transactionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var m Transaction
	if err := WrapError(func() error {
		return r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	}); err != nil {
		return nil, err
	}
	return transactionToDomain(&m), nil
}

// SetHash implements repository.TransactionRepository.
func (r *transactionRepository) SetHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.pendingUpdate(ctx, id, map[string]any{"blockchain_tx_hash": hash})
}

// Finalize implements repository.TransactionRepository.
func (r *transactionRepository) Finalize(
	ctx context.Context,
	id uuid.UUID,
	status domain.Status,
	hash string,
) error {
	if !status.IsTerminal() {
		return domain.ErrInvalidStatus
	}
	updates := map[string]any{"status": string(status)}
	if hash != "" {
		updates["blockchain_tx_hash"] = hash
	}
	return r.pendingUpdate(ctx, id, updates)
}

// pendingUpdate applies updates only while the row is PENDING.
func (r *transactionRepository) pendingUpdate(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("id = ? AND status = ?", id, string(domain.StatusPending)).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update transaction: %w", MapGormErrorToDomain(res.Error))
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return err
	}
	return domain.ErrAlreadyFinal
}

// ListByOwner implements repository.TransactionRepository.
func (r *transactionRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Transaction, error) {
	var rows []Transaction
	if err := r.db.WithContext(ctx).
		Where("origin_owner_id = ? OR destination_owner_id = ?", ownerID, ownerID).
		Order("transaction_date DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return mapTransactions(rows), nil
}

// ListPendingBefore implements repository.TransactionRepository.
func (r *transactionRepository) ListPendingBefore(
	ctx context.Context,
	t time.Time,
	limit int,
) ([]*domain.Transaction, error) {
	var rows []Transaction
	if err := r.db.WithContext(ctx).
		Where("status = ? AND transaction_date < ?", string(domain.StatusPending), t).
		Order("transaction_date ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list pending transactions: %w", err)
	}
	return mapTransactions(rows), nil
}

func mapTransactions(rows []Transaction) []*domain.Transaction {
	out := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, transactionToDomain(&rows[i]))
	}
	return out
}
