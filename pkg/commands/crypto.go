package commands

import (
	"context"
	"errors"

	"github.com/amirasaad/settlement/pkg/command"
	"github.com/amirasaad/settlement/pkg/hub"
	"github.com/amirasaad/settlement/pkg/ledger"
	"github.com/amirasaad/settlement/pkg/settlement"
	"github.com/shopspring/decimal"
)

// CryptoTransfer moves crypto between two wallets off-chain at 1:1.
type CryptoTransfer struct{ *Deps }

func (c *CryptoTransfer) CanHandle(k hub.Kind) bool { return k == hub.KindCryptoTransfer }

func (c *CryptoTransfer) Validate(req PeerRequest) error { return validatePeer(req) }

func (c *CryptoTransfer) Process(ctx context.Context, req command.Request[PeerRequest]) (command.Result, error) {
	logger := c.logger(req.Kind, req.Envelope)
	tx, err := c.Ledger.TransferCrypto(ctx, req.Data.OwnerID, req.Data.RecipientID, req.Data.Amount)
	if err != nil {
		return fail(logger, err), nil
	}
	logger.Info("✅ crypto transferred", "transaction_id", tx.ID)
	payload := map[string]any{"transaction": transactionPayload(tx)}
	if owner, err := c.Ledger.Owner(ctx, req.Data.OwnerID); err == nil {
		payload["balances"] = balancesPayload(owner.Wallet)
	}
	return command.OK("crypto transferred", payload), nil
}

// BuyCrypto pays fiat for crypto minted on chain.
type BuyCrypto struct{ *Deps }

func (c *BuyCrypto) CanHandle(k hub.Kind) bool { return k == hub.KindBuyCrypto }

func (c *BuyCrypto) Validate(req AmountRequest) error { return validateAmount(req) }

func (c *BuyCrypto) Process(ctx context.Context, req command.Request[AmountRequest]) (command.Result, error) {
	logger := c.logger(req.Kind, req.Envelope)
	owner, err := c.Ledger.Owner(ctx, req.Data.OwnerID)
	if err != nil {
		return fail(logger, err), nil
	}
	r, err := c.Rates.Rate(ctx)
	if err != nil {
		return fail(logger, err), nil
	}
	if err := owner.Wallet.CanDebitFiat(ledger.FiatValue(req.Data.Amount, r)); err != nil {
		return fail(logger, err), nil
	}
	return c.settle(ctx, req, owner.Wallet.Address, r)
}

// SellCrypto burns crypto on chain for fiat.
type SellCrypto struct{ *Deps }

func (c *SellCrypto) CanHandle(k hub.Kind) bool { return k == hub.KindSellCrypto }

func (c *SellCrypto) Validate(req AmountRequest) error { return validateAmount(req) }

func (c *SellCrypto) Process(ctx context.Context, req command.Request[AmountRequest]) (command.Result, error) {
	logger := c.logger(req.Kind, req.Envelope)
	owner, err := c.Ledger.Owner(ctx, req.Data.OwnerID)
	if err != nil {
		return fail(logger, err), nil
	}
	if err := owner.Wallet.CanDebitCrypto(req.Data.Amount); err != nil {
		return fail(logger, err), nil
	}
	r, err := c.Rates.Rate(ctx)
	if err != nil {
		return fail(logger, err), nil
	}
	return c.settle(ctx, req, owner.Wallet.Address, r)
}

// settle reserves the funds and hands the transaction to the settlement
// worker, which publishes the outcome itself.
func (d *Deps) settle(
	ctx context.Context,
	req command.Request[AmountRequest],
	address string,
	r decimal.Decimal,
) (command.Result, error) {
	logger := d.logger(req.Kind, req.Envelope)
	tx, _, err := d.Settlements.Begin(ctx, settlement.Request{
		Kind:     req.Kind,
		Envelope: req.Envelope,
		OwnerID:  req.Data.OwnerID,
		Address:  address,
		Amount:   req.Data.Amount,
		Rate:     r,
	})
	if errors.Is(err, settlement.ErrShuttingDown) {
		logger.Warn("settlement rejected during shutdown")
		return command.Fail(MessageShuttingDown), nil
	}
	if err != nil {
		return fail(logger, err), nil
	}
	logger.Info("🟢 settlement started", "transaction_id", tx.ID)
	return command.Accepted(), nil
}
