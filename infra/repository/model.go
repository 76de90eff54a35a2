package repository

import (
	"time"

	"github.com/amirasaad/settlement/pkg/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Owner represents an owner record in the database.
type Owner struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"size:255;not null"`
	Email     string    `gorm:"uniqueIndex;size:255;not null"`
	OwnerType string    `gorm:"type:varchar(16);not null"`
	Wallet    Wallet    `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for the Owner model.
func (Owner) TableName() string { return "owners" }

// Wallet represents the balances row of one owner.
type Wallet struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OwnerID       uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null"`
	FiatBalance   decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	CryptoBalance decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Address       string          `gorm:"size:64"`
	UpdatedAt     time.Time
}

// TableName specifies the table name for the Wallet model.
func (Wallet) TableName() string { return "wallets" }

// Transaction represents a persisted crypto or peer transaction.
type Transaction struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OriginOwnerID      *uuid.UUID      `gorm:"type:uuid;index"`
	DestinationOwnerID *uuid.UUID      `gorm:"type:uuid;index"`
	Amount             decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	ConversionRate     decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Concept            string          `gorm:"type:varchar(16);not null"`
	BlockchainTxHash   string          `gorm:"type:varchar(80);column:blockchain_tx_hash"`
	Status             string          `gorm:"type:varchar(16);not null;index"`
	TransactionDate    time.Time       `gorm:"not null;index"`
}

// TableName specifies the table name for the Transaction model.
func (Transaction) TableName() string { return "transactions" }

// FiatTransaction represents a persisted fiat ledger row.
type FiatTransaction struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OwnerID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount          decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Concept         string          `gorm:"type:varchar(16);not null"`
	Status          string          `gorm:"type:varchar(16);not null"`
	TransactionDate time.Time       `gorm:"not null"`
}

// TableName specifies the table name for the FiatTransaction model.
func (FiatTransaction) TableName() string { return "fiat_transactions" }

func ownerToModel(o *domain.Owner) Owner {
	return Owner{
		ID:        o.ID,
		Name:      o.Name,
		Email:     o.Email,
		OwnerType: string(o.Type),
		Wallet:    walletToModel(o.Wallet),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func walletToModel(w domain.Wallet) Wallet {
	return Wallet{
		ID:            w.ID,
		OwnerID:       w.OwnerID,
		FiatBalance:   w.FiatBalance,
		CryptoBalance: w.CryptoBalance,
		Address:       w.Address,
		UpdatedAt:     w.UpdatedAt,
	}
}

func ownerToDomain(m *Owner) *domain.Owner {
	return &domain.Owner{
		ID:    m.ID,
		Name:  m.Name,
		Email: m.Email,
		Type:  domain.OwnerType(m.OwnerType),
		Wallet: domain.Wallet{
			ID:            m.Wallet.ID,
			OwnerID:       m.Wallet.OwnerID,
			FiatBalance:   m.Wallet.FiatBalance,
			CryptoBalance: m.Wallet.CryptoBalance,
			Address:       m.Wallet.Address,
			UpdatedAt:     m.Wallet.UpdatedAt,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func transactionToModel(t *domain.Transaction) Transaction {
	return Transaction{
		ID:                 t.ID,
		OriginOwnerID:      t.OriginOwnerID,
		DestinationOwnerID: t.DestinationOwnerID,
		Amount:             t.Amount,
		ConversionRate:     t.ConversionRate,
		Concept:            string(t.Concept),
		BlockchainTxHash:   t.BlockchainTxHash,
		Status:             string(t.Status),
		TransactionDate:    t.TransactionDate,
	}
}

func transactionToDomain(m *Transaction) *domain.Transaction {
	return &domain.Transaction{
		ID:                 m.ID,
		OriginOwnerID:      m.OriginOwnerID,
		DestinationOwnerID: m.DestinationOwnerID,
		Amount:             m.Amount,
		ConversionRate:     m.ConversionRate,
		Concept:            domain.Concept(m.Concept),
		BlockchainTxHash:   m.BlockchainTxHash,
		Status:             domain.Status(m.Status),
		TransactionDate:    m.TransactionDate,
	}
}

func fiatToModel(f domain.FiatTransaction) FiatTransaction {
	return FiatTransaction{
		ID:              f.ID,
		OwnerID:         f.OwnerID,
		Amount:          f.Amount,
		Concept:         string(f.Concept),
		Status:          string(f.Status),
		TransactionDate: f.TransactionDate,
	}
}

func fiatToDomain(m FiatTransaction) domain.FiatTransaction {
	return domain.FiatTransaction{
		ID:              m.ID,
		OwnerID:         m.OwnerID,
		Amount:          m.Amount,
		Concept:         domain.FiatConcept(m.Concept),
		Status:          domain.Status(m.Status),
		TransactionDate: m.TransactionDate,
	}
}
