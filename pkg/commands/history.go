package commands

import (
	"context"

	"github.com/amirasaad/settlement/pkg/command"
	"github.com/amirasaad/settlement/pkg/hub"
)

// FiatHistory lists the fiat ledger of an owner, newest first.
type FiatHistory struct{ *Deps }

func (c *FiatHistory) CanHandle(k hub.Kind) bool { return k == hub.KindFiatHistory }

func (c *FiatHistory) Validate(OwnerRequest) error { return nil }

func (c *FiatHistory) Process(ctx context.Context, req command.Request[OwnerRequest]) (command.Result, error) {
	logger := c.logger(req.Kind, req.Envelope)
	if _, err := c.Ledger.Owner(ctx, req.Data.OwnerID); err != nil {
		return fail(logger, err), nil
	}
	return c.later(req.Kind, req.Envelope, logger, func(ctx context.Context) command.Result {
		rows, err := c.Ledger.FiatHistory(ctx, req.Data.OwnerID)
		if err != nil {
			return fail(logger, err)
		}
		items := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			items = append(items, fiatPayload(row))
		}
		return command.OK("fiat history retrieved", map[string]any{
			"ownerId":      req.Data.OwnerID.String(),
			"transactions": items,
		})
	}), nil
}

// CryptoHistory lists the settlement-backed transactions of an owner.
type CryptoHistory struct{ *Deps }

func (c *CryptoHistory) CanHandle(k hub.Kind) bool { return k == hub.KindCryptoHistory }

func (c *CryptoHistory) Validate(OwnerRequest) error { return nil }

func (c *CryptoHistory) Process(ctx context.Context, req command.Request[OwnerRequest]) (command.Result, error) {
	logger := c.logger(req.Kind, req.Envelope)
	if _, err := c.Ledger.Owner(ctx, req.Data.OwnerID); err != nil {
		return fail(logger, err), nil
	}
	return c.later(req.Kind, req.Envelope, logger, func(ctx context.Context) command.Result {
		txs, err := c.Ledger.CryptoHistory(ctx, req.Data.OwnerID)
		if err != nil {
			return fail(logger, err)
		}
		items := make([]map[string]any, 0, len(txs))
		for _, tx := range txs {
			items = append(items, transactionPayload(tx))
		}
		return command.OK("crypto history retrieved", map[string]any{
			"ownerId":      req.Data.OwnerID.String(),
			"transactions": items,
		})
	}), nil
}
