package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/settlement/pkg/amount"
	"github.com/amirasaad/settlement/pkg/domain"
	"github.com/amirasaad/settlement/pkg/hub"
	"github.com/amirasaad/settlement/pkg/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// DefaultPollInterval is how often the persisted status is read.
	DefaultPollInterval = 20 * time.Second
	// DefaultDeadline bounds a settlement from its start.
	DefaultDeadline = 60 * time.Second

	MessageSettlementFailed  = "settlement failed"
	MessageSettlementTimeout = "settlement did not complete in time"
)

// Ledger is the part of the ledger mutator settlement depends on.
type Ledger interface {
	ReservePurchase(ctx context.Context, ownerID uuid.UUID, crypto, rate decimal.Decimal) (*domain.Transaction, error)
	ReserveSale(ctx context.Context, ownerID uuid.UUID, crypto, rate decimal.Decimal) (*domain.Transaction, error)
	RecordSubmission(ctx context.Context, txID uuid.UUID, hash string) error
	Finalize(ctx context.Context, txID uuid.UUID, outcome ledger.Outcome) (*domain.Transaction, error)
	Transaction(ctx context.Context, txID uuid.UUID) (*domain.Transaction, error)
	Owner(ctx context.Context, ownerID uuid.UUID) (*domain.Owner, error)
	Pending(ctx context.Context, before time.Time, limit int) ([]*domain.Transaction, error)
}

// Publisher emits the final outcome of a settlement.
type Publisher interface {
	Respond(ctx context.Context, req hub.Envelope, topic string, payload any) error
	BlockchainError(ctx context.Context, req hub.Envelope, message string) error
}

// Config holds the worker timings. The deadline is fixed per process.
type Config struct {
	PollInterval time.Duration
	Deadline     time.Duration
}

// Request describes a buy or sell to settle.
type Request struct {
	Kind     hub.Kind
	Envelope hub.Envelope
	OwnerID  uuid.UUID
	Address  string
	Amount   decimal.Decimal
	Rate     decimal.Decimal
}

// Worker runs settlements as tasks.
type Worker struct {
	ledger    Ledger
	settler   Settler
	publisher Publisher
	tasks     *Tasks
	cfg       Config
	logger    *slog.Logger
}

// NewWorker creates a worker. Zero timings take the defaults.
func NewWorker(l Ledger, s Settler, p Publisher, tasks *Tasks, cfg Config, logger *slog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultDeadline
	}
	return &Worker{
		ledger:    l,
		settler:   s,
		publisher: p,
		tasks:     tasks,
		cfg:       cfg,
		logger:    logger.With("component", "settlement-worker"),
	}
}

// Begin reserves the funds of req and opens its PENDING transaction, then
// settles it on a background task. Reservation errors are returned
// synchronously and start nothing. After Shutdown it returns
// ErrShuttingDown with no reservation left behind.
func (w *Worker) Begin(ctx context.Context, req Request) (*domain.Transaction, *Task, error) {
	if w.tasks.Closed() {
		return nil, nil, ErrShuttingDown
	}
	var (
		tx  *domain.Transaction
		err error
	)
	switch req.Kind {
	case hub.KindBuyCrypto:
		tx, err = w.ledger.ReservePurchase(ctx, req.OwnerID, req.Amount, req.Rate)
	case hub.KindSellCrypto:
		tx, err = w.ledger.ReserveSale(ctx, req.OwnerID, req.Amount, req.Rate)
	default:
		return nil, nil, fmt.Errorf("%w: %s is not settlement-backed", domain.ErrValidation, req.Kind)
	}
	if err != nil {
		return nil, nil, err
	}
	task := w.tasks.Go("settle:"+tx.ID.String(), func(ctx context.Context) error {
		return w.Settle(ctx, req, tx)
	})
	if errors.Is(task.Err(), ErrShuttingDown) {
		// Shutdown raced the reservation.
		logger := w.logger.With("transaction_id", tx.ID)
		logger.Warn("settlement rejected during shutdown, refunding")
		w.finalize(ctx, logger, tx.ID, ledger.Outcome{Status: domain.StatusFailure})
		return nil, nil, ErrShuttingDown
	}
	return tx, task, nil
}

// Settle submits the on-chain call for tx and waits for its terminal
// status, polling the persisted row until the deadline. It publishes one
// outcome event, or nothing when ctx is cancelled first.
func (w *Worker) Settle(ctx context.Context, req Request, tx *domain.Transaction) error {
	logger := w.logger.With(
		"transaction_id", tx.ID,
		"topic", req.Envelope.Topic,
		"correlation_id", req.Envelope.CorrelationID,
	)
	logger.Info("🟢 settlement started", "concept", tx.Concept, "amount", amount.Format(tx.Amount))

	deadline := time.NewTimer(w.cfg.Deadline)
	defer deadline.Stop()
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	callCtx, cancelCall := context.WithCancel(ctx)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		w.call(callCtx, logger, req, tx)
	}()
	done := finished
	defer func() {
		cancelCall()
		<-done
	}()

	expired := false
	for {
		current, err := w.ledger.Transaction(ctx, tx.ID)
		switch {
		case ctx.Err() != nil:
			logger.Warn("settlement abandoned", "reason", ctx.Err())
			return ctx.Err()
		case err != nil:
			logger.Error("❌ failed to read settlement status", "error", err)
			w.publishError(ctx, logger, req, MessageSettlementFailed)
			return fmt.Errorf("read settlement status: %w", err)
		case current.Status == domain.StatusSuccess:
			w.succeed(ctx, logger, req, current)
			return nil
		case current.Status == domain.StatusFailure:
			logger.Error("❌ settlement failed")
			w.publishError(ctx, logger, req, MessageSettlementFailed)
			return ErrSettlementFailed
		case expired:
			logger.Error("❌ settlement deadline exceeded", "deadline", w.cfg.Deadline)
			w.publishError(ctx, logger, req, MessageSettlementTimeout)
			return ErrSettlementTimeout
		}

		select {
		case <-ctx.Done():
			logger.Warn("settlement abandoned", "reason", ctx.Err())
			return ctx.Err()
		case <-deadline.C:
			expired = true
		case <-finished:
			finished = nil
		case <-ticker.C:
		}
	}
}

// call performs the on-chain leg and finalizes the ledger with its result.
// Cancellation leaves the transaction PENDING.
func (w *Worker) call(ctx context.Context, logger *slog.Logger, req Request, tx *domain.Transaction) {
	hash, err := w.settler.Submit(ctx, Order{
		TransactionID: tx.ID,
		Concept:       tx.Concept,
		Address:       req.Address,
		Amount:        tx.Amount,
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("❌ on-chain call failed", "error", err)
		w.finalize(ctx, logger, tx.ID, ledger.Outcome{Status: domain.StatusFailure})
		return
	}
	logger.Info("📤 on-chain call submitted", "hash", hash)
	if err := w.ledger.RecordSubmission(ctx, tx.ID, hash); err != nil {
		logger.Warn("failed to record submission", "hash", hash, "error", err)
	}

	receipt, err := w.settler.Wait(ctx, hash)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("❌ receipt wait failed", "hash", hash, "error", err)
		w.finalize(ctx, logger, tx.ID, ledger.Outcome{Status: domain.StatusFailure, Hash: hash})
		return
	}
	status := domain.StatusFailure
	if receipt.Success {
		status = domain.StatusSuccess
	}
	if receipt.Hash == "" {
		receipt.Hash = hash
	}
	w.finalize(ctx, logger, tx.ID, ledger.Outcome{Status: status, Hash: receipt.Hash})
}

func (w *Worker) finalize(ctx context.Context, logger *slog.Logger, txID uuid.UUID, outcome ledger.Outcome) {
	if _, err := w.ledger.Finalize(ctx, txID, outcome); err != nil && !errors.Is(err, domain.ErrAlreadyFinal) {
		logger.Error("❌ failed to finalize settlement", "status", outcome.Status, "error", err)
	}
}

func (w *Worker) succeed(ctx context.Context, logger *slog.Logger, req Request, tx *domain.Transaction) {
	payload := map[string]any{
		"transactionId":    tx.ID.String(),
		"concept":          string(tx.Concept),
		"amount":           amount.Format(tx.Amount),
		"fiatAmount":       amount.Format(ledger.FiatValue(tx.Amount, tx.ConversionRate)),
		"conversionRate":   tx.ConversionRate.String(),
		"blockchainTxHash": tx.BlockchainTxHash,
		"status":           string(tx.Status),
	}
	if owner, err := w.ledger.Owner(ctx, req.OwnerID); err == nil {
		payload["balances"] = map[string]any{
			"fiat":   amount.Format(owner.Wallet.FiatBalance),
			"crypto": amount.Format(owner.Wallet.CryptoBalance),
		}
	} else {
		logger.Warn("failed to refresh balances", "owner_id", req.OwnerID, "error", err)
	}

	if err := w.publisher.Respond(ctx, req.Envelope, req.Kind.ResponseTopic(), payload); err != nil {
		logger.Error("❌ failed to publish settlement response", "error", err)
		return
	}
	logger.Info("✅ settlement completed", "hash", tx.BlockchainTxHash)
}

func (w *Worker) publishError(ctx context.Context, logger *slog.Logger, req Request, message string) {
	if err := w.publisher.BlockchainError(ctx, req.Envelope, message); err != nil {
		logger.Error("❌ failed to publish settlement error", "error", err)
	}
}
