package settlement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/amirasaad/settlement/pkg/domain"
	"github.com/amirasaad/settlement/pkg/ledger"
)

// ReconcilerConfig holds the sweep timings.
type ReconcilerConfig struct {
	// Interval between sweeps.
	Interval time.Duration
	// After is the age from which a PENDING transaction is reconciled.
	After time.Duration
	// Grace is the age from which a PENDING transaction without a hash is
	// failed and its reservation refunded.
	Grace time.Duration
	// Batch caps the transactions handled per sweep.
	Batch int
}

// Reconciler finalizes transactions left PENDING by timed-out or
// abandoned settlements. It never publishes events.
type Reconciler struct {
	ledger  Ledger
	settler Settler
	cfg     ReconcilerConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewReconciler creates a reconciler. Zero timings take defaults derived
// from the settlement deadline.
func NewReconciler(l Ledger, s Settler, cfg ReconcilerConfig, logger *slog.Logger) *Reconciler {
	if cfg.After <= 0 {
		cfg.After = DefaultDeadline
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Grace < cfg.After {
		cfg.Grace = 10 * cfg.After
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 100
	}
	return &Reconciler{
		ledger:  l,
		settler: s,
		cfg:     cfg,
		logger:  logger.With("component", "reconciler"),
		now:     time.Now,
	}
}

// Run sweeps every Interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	r.logger.Info("🟢 reconciler started", "interval", r.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("❌ reconcile sweep failed", "error", err)
			}
		}
	}
}

// Sweep reconciles one batch and returns how many transactions it finalized.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	now := r.now()
	pending, err := r.ledger.Pending(ctx, now.Add(-r.cfg.After), r.cfg.Batch)
	if err != nil {
		return 0, err
	}

	finalized := 0
	for _, tx := range pending {
		logger := r.logger.With("transaction_id", tx.ID)
		outcome, ok := r.resolve(ctx, logger, tx, now)
		if !ok {
			continue
		}
		_, err := r.ledger.Finalize(ctx, tx.ID, outcome)
		switch {
		case errors.Is(err, domain.ErrAlreadyFinal):
		case err != nil:
			logger.Error("❌ failed to reconcile", "error", err)
		default:
			finalized++
			logger.Info("✅ transaction reconciled", "status", outcome.Status)
		}
	}
	return finalized, nil
}

func (r *Reconciler) resolve(ctx context.Context, logger *slog.Logger, tx *domain.Transaction, now time.Time) (ledger.Outcome, bool) {
	if tx.BlockchainTxHash == "" {
		if now.Sub(tx.TransactionDate) < r.cfg.Grace {
			return ledger.Outcome{}, false
		}
		return ledger.Outcome{Status: domain.StatusFailure}, true
	}

	receipt, err := r.settler.Receipt(ctx, tx.BlockchainTxHash)
	if errors.Is(err, ErrNotMined) {
		return ledger.Outcome{}, false
	}
	if err != nil {
		logger.Warn("receipt lookup failed", "hash", tx.BlockchainTxHash, "error", err)
		return ledger.Outcome{}, false
	}
	status := domain.StatusFailure
	if receipt.Success {
		status = domain.StatusSuccess
	}
	return ledger.Outcome{Status: status, Hash: tx.BlockchainTxHash}, true
}
