package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OwnerType classifies the holder of a wallet.
type OwnerType string

const (
	OwnerTypePerson   OwnerType = "PERSON"
	OwnerTypeBusiness OwnerType = "BUSINESS"
)

// IsValid reports whether t is a member of the enumeration.
func (t OwnerType) IsValid() bool {
	return t == OwnerTypePerson || t == OwnerTypeBusiness
}

// Owner holds exactly one wallet.
//
// Invariants:
//   - Email is unique across owners (enforced by the repository).
//   - Wallet.OwnerID == ID.
type Owner struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Type      OwnerType
	Wallet    Wallet
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOwner validates the owner fields and returns an owner with an empty
// wallet bound to address.
func NewOwner(name, email string, ownerType OwnerType, address string) (*Owner, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if ownerType == "" {
		ownerType = OwnerTypePerson
	}
	if !ownerType.IsValid() {
		return nil, ErrInvalidOwnerType
	}
	now := time.Now().UTC()
	id := uuid.New()
	return &Owner{
		ID:        id,
		Name:      name,
		Email:     email,
		Type:      ownerType,
		Wallet:    NewWallet(id, address),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
