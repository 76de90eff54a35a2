package commands

import (
	"context"

	"github.com/amirasaad/settlement/pkg/amount"
	"github.com/amirasaad/settlement/pkg/command"
	"github.com/amirasaad/settlement/pkg/hub"
)

// FiatDeposit credits fiat to a wallet.
type FiatDeposit struct{ *Deps }

func (c *FiatDeposit) CanHandle(k hub.Kind) bool { return k == hub.KindFiatDeposit }

func (c *FiatDeposit) Validate(req AmountRequest) error { return validateAmount(req) }

func (c *FiatDeposit) Process(ctx context.Context, req command.Request[AmountRequest]) (command.Result, error) {
	logger := c.logger(req.Kind, req.Envelope)
	if _, err := c.Ledger.Owner(ctx, req.Data.OwnerID); err != nil {
		return fail(logger, err), nil
	}
	return c.later(req.Kind, req.Envelope, logger, func(ctx context.Context) command.Result {
		row, wallet, err := c.Ledger.Deposit(ctx, req.Data.OwnerID, req.Data.Amount)
		if err != nil {
			return fail(logger, err)
		}
		logger.Info("✅ deposit applied", "owner_id", req.Data.OwnerID, "amount", amount.Format(req.Data.Amount))
		return command.OK("deposit completed", map[string]any{
			"transaction": fiatPayload(row),
			"balances":    balancesPayload(wallet),
		})
	}), nil
}

// FiatWithdrawal debits fiat from a wallet.
type FiatWithdrawal struct{ *Deps }

func (c *FiatWithdrawal) CanHandle(k hub.Kind) bool { return k == hub.KindFiatWithdrawal }

func (c *FiatWithdrawal) Validate(req AmountRequest) error { return validateAmount(req) }

func (c *FiatWithdrawal) Process(ctx context.Context, req command.Request[AmountRequest]) (command.Result, error) {
	logger := c.logger(req.Kind, req.Envelope)
	owner, err := c.Ledger.Owner(ctx, req.Data.OwnerID)
	if err != nil {
		return fail(logger, err), nil
	}
	if err := owner.Wallet.CanDebitFiat(req.Data.Amount); err != nil {
		return fail(logger, err), nil
	}
	return c.later(req.Kind, req.Envelope, logger, func(ctx context.Context) command.Result {
		row, wallet, err := c.Ledger.Withdraw(ctx, req.Data.OwnerID, req.Data.Amount)
		if err != nil {
			return fail(logger, err)
		}
		logger.Info("✅ withdrawal applied", "owner_id", req.Data.OwnerID, "amount", amount.Format(req.Data.Amount))
		return command.OK("withdrawal completed", map[string]any{
			"transaction": fiatPayload(row),
			"balances":    balancesPayload(wallet),
		})
	}), nil
}

// FiatPayment moves fiat between two wallets.
type FiatPayment struct{ *Deps }

func (c *FiatPayment) CanHandle(k hub.Kind) bool { return k == hub.KindFiatPayment }

func (c *FiatPayment) Validate(req PeerRequest) error { return validatePeer(req) }

func (c *FiatPayment) Process(ctx context.Context, req command.Request[PeerRequest]) (command.Result, error) {
	logger := c.logger(req.Kind, req.Envelope)
	sender, err := c.Ledger.Owner(ctx, req.Data.OwnerID)
	if err != nil {
		return fail(logger, err), nil
	}
	if _, err := c.Ledger.Owner(ctx, req.Data.RecipientID); err != nil {
		return fail(logger, err), nil
	}
	if err := sender.Wallet.CanDebitFiat(req.Data.Amount); err != nil {
		return fail(logger, err), nil
	}
	return c.later(req.Kind, req.Envelope, logger, func(ctx context.Context) command.Result {
		tr, err := c.Ledger.Transfer(ctx, req.Data.OwnerID, req.Data.RecipientID, req.Data.Amount)
		if err != nil {
			return fail(logger, err)
		}
		logger.Info("✅ payment applied",
			"sender_id", req.Data.OwnerID,
			"recipient_id", req.Data.RecipientID,
			"amount", amount.Format(req.Data.Amount),
		)
		return command.OK("payment completed", map[string]any{
			"debit":    fiatPayload(tr.Debit),
			"credit":   fiatPayload(tr.Credit),
			"balances": balancesPayload(tr.Sender),
		})
	}), nil
}
