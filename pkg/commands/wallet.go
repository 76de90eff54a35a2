package commands

import (
	"context"
	"strings"

	"github.com/amirasaad/settlement/pkg/command"
	"github.com/amirasaad/settlement/pkg/domain"
	"github.com/amirasaad/settlement/pkg/hub"
)

// WalletCreationRequest registers a new owner.
type WalletCreationRequest struct {
	Name      string `mapstructure:"name" validate:"required"`
	Email     string `mapstructure:"email" validate:"required,email"`
	OwnerType string `mapstructure:"ownerType"`
}

// WalletCreation opens a wallet for a new owner.
type WalletCreation struct{ *Deps }

func (c *WalletCreation) CanHandle(k hub.Kind) bool { return k == hub.KindWalletCreation }

func (c *WalletCreation) Validate(req WalletCreationRequest) error {
	if req.OwnerType == "" {
		return nil
	}
	if !domain.OwnerType(strings.ToUpper(req.OwnerType)).IsValid() {
		return domain.ErrInvalidOwnerType
	}
	return nil
}

func (c *WalletCreation) Process(ctx context.Context, req command.Request[WalletCreationRequest]) (command.Result, error) {
	logger := c.logger(req.Kind, req.Envelope)

	address, err := c.Addresses.NewAddress(ctx)
	if err != nil {
		return fail(logger, err), nil
	}
	ownerType := domain.OwnerType(strings.ToUpper(req.Data.OwnerType))
	owner, err := c.Ledger.OpenWallet(ctx, req.Data.Name, req.Data.Email, ownerType, address)
	if err != nil {
		return fail(logger, err), nil
	}
	logger.Info("✅ wallet created", "owner_id", owner.ID)
	return command.OK("wallet created", walletPayload(owner)), nil
}

// WalletDeletion removes an owner with its wallet and ledger rows.
type WalletDeletion struct{ *Deps }

func (c *WalletDeletion) CanHandle(k hub.Kind) bool { return k == hub.KindWalletDeletion }

func (c *WalletDeletion) Validate(OwnerRequest) error { return nil }

func (c *WalletDeletion) Process(ctx context.Context, req command.Request[OwnerRequest]) (command.Result, error) {
	logger := c.logger(req.Kind, req.Envelope)
	if err := c.Ledger.CloseWallet(ctx, req.Data.OwnerID); err != nil {
		return fail(logger, err), nil
	}
	logger.Info("✅ wallet deleted", "owner_id", req.Data.OwnerID)
	return command.OK("wallet deleted", map[string]any{"ownerId": req.Data.OwnerID.String()}), nil
}

// GetBalances reads the balances of a wallet.
type GetBalances struct{ *Deps }

func (c *GetBalances) CanHandle(k hub.Kind) bool { return k == hub.KindGetBalances }

func (c *GetBalances) Validate(OwnerRequest) error { return nil }

func (c *GetBalances) Process(ctx context.Context, req command.Request[OwnerRequest]) (command.Result, error) {
	owner, err := c.Ledger.Owner(ctx, req.Data.OwnerID)
	if err != nil {
		return fail(c.logger(req.Kind, req.Envelope), err), nil
	}
	payload := balancesPayload(owner.Wallet)
	payload["ownerId"] = owner.ID.String()
	return command.OK("balances retrieved", payload), nil
}
