package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirasaad/settlement/pkg/domain"
	repo "github.com/amirasaad/settlement/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ownerRepository struct {
	db *gorm.DB
}

// NewOwnerRepository creates an owner repository using the provided *gorm.DB.
func NewOwnerRepository(db *gorm.DB) repo.OwnerRepository {
	return &ownerRepository{db: db}
}

// Create implements repository.OwnerRepository.
func (r *ownerRepository) Create(ctx context.Context, owner *domain.Owner) error {
	m := ownerToModel(owner)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&m).Error; err != nil {
			return err
		}
		return tx.Create(&m.Wallet).Error
	})
	err = MapGormErrorToDomain(err)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return domain.ErrEmailTaken
	}
	return err
}

// Get implements repository.OwnerRepository.
func (r *ownerRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Owner, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByEmail implements repository.OwnerRepository.
func (r *ownerRepository) GetByEmail(ctx context.Context, email string) (*domain.Owner, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *ownerRepository) first(ctx context.Context, query string, arg any) (*domain.Owner, error) {
	var m Owner
	err := WrapError(func() error {
		return r.db.WithContext(ctx).Preload("Wallet").Where(query, arg).First(&m).Error
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrOwnerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get owner: %w", err)
	}
	return ownerToDomain(&m), nil
}

// UpdateWallet implements repository.OwnerRepository.
func (r *ownerRepository) UpdateWallet(ctx context.Context, wallet domain.Wallet) error {
	res := r.db.WithContext(ctx).
		Model(&Wallet{}).
		Where("id = ?", wallet.ID).
		Updates(map[string]any{
			"fiat_balance":   wallet.FiatBalance,
			"crypto_balance": wallet.CryptoBalance,
			"updated_at":     wallet.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update wallet: %w", MapGormErrorToDomain(res.Error))
	}
	if res.RowsAffected == 0 {
		return domain.ErrOwnerNotFound
	}
	return nil
}

// Delete implements repository.OwnerRepository. Peer transactions keep
// the counterparty side; rows left without any owner are removed.
func (r *ownerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ?", id).Delete(&FiatTransaction{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&Transaction{}).Where("origin_owner_id = ?", id).
			Update("origin_owner_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&Transaction{}).Where("destination_owner_id = ?", id).
			Update("destination_owner_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("origin_owner_id IS NULL AND destination_owner_id IS NULL").
			Delete(&Transaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ?", id).Delete(&Wallet{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&Owner{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrOwnerNotFound
		}
		return nil
	})
	return MapGormErrorToDomain(err)
}
