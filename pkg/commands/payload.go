package commands

import (
	"time"

	"github.com/amirasaad/settlement/pkg/amount"
	"github.com/amirasaad/settlement/pkg/domain"
)

func balancesPayload(w domain.Wallet) map[string]any {
	return map[string]any{
		"fiatBalance":   amount.Format(w.FiatBalance),
		"cryptoBalance": amount.Format(w.CryptoBalance),
	}
}

func walletPayload(o *domain.Owner) map[string]any {
	return map[string]any{
		"ownerId":   o.ID.String(),
		"name":      o.Name,
		"email":     o.Email,
		"ownerType": string(o.Type),
		"wallet": map[string]any{
			"id":            o.Wallet.ID.String(),
			"address":       o.Wallet.Address,
			"fiatBalance":   amount.Format(o.Wallet.FiatBalance),
			"cryptoBalance": amount.Format(o.Wallet.CryptoBalance),
		},
	}
}

func fiatPayload(row domain.FiatTransaction) map[string]any {
	return map[string]any{
		"id":              row.ID.String(),
		"ownerId":         row.OwnerID.String(),
		"amount":          amount.Format(row.Amount),
		"concept":         string(row.Concept),
		"status":          string(row.Status),
		"transactionDate": row.TransactionDate.UTC().Format(time.RFC3339Nano),
	}
}

func transactionPayload(tx *domain.Transaction) map[string]any {
	p := map[string]any{
		"id":               tx.ID.String(),
		"amount":           amount.Format(tx.Amount),
		"conversionRate":   tx.ConversionRate.String(),
		"concept":          string(tx.Concept),
		"blockchainTxHash": tx.BlockchainTxHash,
		"status":           string(tx.Status),
		"transactionDate":  tx.TransactionDate.UTC().Format(time.RFC3339Nano),
	}
	if tx.OriginOwnerID != nil {
		p["originOwnerId"] = tx.OriginOwnerID.String()
	}
	if tx.DestinationOwnerID != nil {
		p["destinationOwnerId"] = tx.DestinationOwnerID.String()
	}
	return p
}
