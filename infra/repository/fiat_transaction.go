package repository

import (
	"context"
	"fmt"

	"github.com/amirasaad/settlement/pkg/domain"
	repo "github.com/amirasaad/settlement/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fiatTransactionRepository struct {
	db *gorm.DB
}

// NewFiatTransactionRepository creates a fiat ledger repository using the provided *gorm.DB.
func NewFiatTransactionRepository(db *gorm.DB) repo.FiatTransactionRepository {
	return &fiatTransactionRepository{db: db}
}

// Create implements repository.FiatTransactionRepository.
func (r *fiatTransactionRepository) Create(ctx context.Context, rows ...domain.FiatTransaction) error {
	if len(rows) == 0 {
		return nil
	}
	models := make([]FiatTransaction, 0, len(rows))
	for _, row := range rows {
		models = append(models, fiatToModel(row))
	}
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(&models).Error
	})
}

// ListByOwner implements repository.FiatTransactionRepository.
func (r *fiatTransactionRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.FiatTransaction, error) {
	var rows []FiatTransaction
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("transaction_date DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list fiat transactions: %w", err)
	}
	out := make([]domain.FiatTransaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, fiatToDomain(row))
	}
	return out, nil
}
