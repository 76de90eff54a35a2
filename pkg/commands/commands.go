// Package commands implements every operation the service answers on the
// hub, one command per kind.
//
// Immediate commands return their final result. Deferred commands run
// cheap prechecks, hand the real work to the task group and return an
// accepted result; the task publishes the outcome on the response topic
// correlated to the original envelope.
package commands

import (
	"context"
	"errors"
	"log/slog"

	"github.com/amirasaad/settlement/pkg/amount"
	"github.com/amirasaad/settlement/pkg/command"
	"github.com/amirasaad/settlement/pkg/domain"
	"github.com/amirasaad/settlement/pkg/hub"
	"github.com/amirasaad/settlement/pkg/ledger"
	"github.com/amirasaad/settlement/pkg/rate"
	"github.com/amirasaad/settlement/pkg/settlement"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MessageShuttingDown answers deferred requests received during shutdown.
const MessageShuttingDown = "service is shutting down"

// Ledger is the part of the ledger mutator the commands use.
type Ledger interface {
	OpenWallet(ctx context.Context, name, email string, ownerType domain.OwnerType, address string) (*domain.Owner, error)
	CloseWallet(ctx context.Context, ownerID uuid.UUID) error
	Owner(ctx context.Context, ownerID uuid.UUID) (*domain.Owner, error)
	Transfer(ctx context.Context, from, to uuid.UUID, amt decimal.Decimal) (*ledger.Transfer, error)
	Deposit(ctx context.Context, ownerID uuid.UUID, amt decimal.Decimal) (domain.FiatTransaction, domain.Wallet, error)
	Withdraw(ctx context.Context, ownerID uuid.UUID, amt decimal.Decimal) (domain.FiatTransaction, domain.Wallet, error)
	TransferCrypto(ctx context.Context, from, to uuid.UUID, amt decimal.Decimal) (*domain.Transaction, error)
	FiatHistory(ctx context.Context, ownerID uuid.UUID) ([]domain.FiatTransaction, error)
	CryptoHistory(ctx context.Context, ownerID uuid.UUID) ([]*domain.Transaction, error)
}

// Settlements starts settlement-backed buys and sells.
type Settlements interface {
	Begin(ctx context.Context, req settlement.Request) (*domain.Transaction, *settlement.Task, error)
}

// Runner starts background tasks.
type Runner interface {
	Go(name string, fn func(ctx context.Context) error) *settlement.Task
}

// Publisher emits deferred outcomes.
type Publisher interface {
	Publish(ctx context.Context, req hub.Envelope, topic string, res command.Result) error
}

// AddressGenerator allocates chain addresses for new wallets.
type AddressGenerator interface {
	NewAddress(ctx context.Context) (string, error)
}

// Deps are the collaborators shared by every command.
type Deps struct {
	Ledger      Ledger
	Settlements Settlements
	Tasks       Runner
	Publisher   Publisher
	Rates       rate.Provider
	Addresses   AddressGenerator
	Logger      *slog.Logger
}

// All returns one operation per kind. This is the registry table.
func All(d Deps) []command.Operation {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	deps := &d
	return []command.Operation{
		command.Bind[WalletCreationRequest](&WalletCreation{deps}),
		command.Bind[OwnerRequest](&WalletDeletion{deps}),
		command.Bind[OwnerRequest](&GetBalances{deps}),
		command.Bind[PeerRequest](&CryptoTransfer{deps}),
		command.Bind[AmountRequest](&FiatDeposit{deps}),
		command.Bind[AmountRequest](&FiatWithdrawal{deps}),
		command.Bind[PeerRequest](&FiatPayment{deps}),
		command.Bind[AmountRequest](&BuyCrypto{deps}),
		command.Bind[AmountRequest](&SellCrypto{deps}),
		command.Bind[OwnerRequest](&FiatHistory{deps}),
		command.Bind[OwnerRequest](&CryptoHistory{deps}),
	}
}

// OwnerRequest names a single owner.
type OwnerRequest struct {
	OwnerID uuid.UUID `mapstructure:"ownerId" validate:"required"`
}

// AmountRequest names an owner and a positive amount.
type AmountRequest struct {
	OwnerID uuid.UUID       `mapstructure:"ownerId" validate:"required"`
	Amount  decimal.Decimal `mapstructure:"amount"`
}

// PeerRequest moves an amount between two distinct owners.
type PeerRequest struct {
	OwnerID     uuid.UUID       `mapstructure:"ownerId" validate:"required"`
	RecipientID uuid.UUID       `mapstructure:"recipientId" validate:"required"`
	Amount      decimal.Decimal `mapstructure:"amount"`
}

func validateAmount(req AmountRequest) error {
	return domain.ValidateAmount(req.Amount)
}

func validatePeer(req PeerRequest) error {
	if req.OwnerID == req.RecipientID {
		return domain.ErrSameOwner
	}
	return domain.ValidateAmount(req.Amount)
}

// businessErrors are reported to the sender verbatim.
var businessErrors = []error{
	domain.ErrValidation,
	domain.ErrNotFound,
	domain.ErrOwnerNotFound,
	domain.ErrEmailTaken,
	domain.ErrInvalidOwnerType,
	domain.ErrAmountMustBePositive,
	domain.ErrInsufficientFunds,
	domain.ErrSameOwner,
	domain.ErrAlreadyFinal,
	amount.ErrPrecisionLoss,
	amount.ErrOverflow,
	rate.ErrInvalidRate,
}

// fail turns err into a result. Unexpected errors are logged and hidden
// behind a generic message.
func fail(logger *slog.Logger, err error) command.Result {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return command.Fail(err.Error())
		}
	}
	logger.Error("❌ unexpected error", "error", err)
	return command.Fail(command.MessageInternalError)
}

func (d *Deps) logger(kind hub.Kind, env hub.Envelope) *slog.Logger {
	return d.Logger.With(
		"handler", string(kind),
		"topic", env.Topic,
		"correlation_id", env.CorrelationID,
	)
}

// later runs work on the task group and publishes its result on the
// response topic of kind.
func (d *Deps) later(
	kind hub.Kind,
	env hub.Envelope,
	logger *slog.Logger,
	work func(ctx context.Context) command.Result,
) command.Result {
	task := d.Tasks.Go(string(kind)+":"+env.CorrelationID, func(ctx context.Context) error {
		res := work(ctx).Normalize()
		if err := ctx.Err(); err != nil {
			logger.Warn("deferred work abandoned", "error", err)
			return err
		}
		if err := d.Publisher.Publish(ctx, env, kind.ResponseTopic(), res); err != nil {
			logger.Error("❌ failed to publish deferred result", "error", err)
			return err
		}
		return nil
	})
	if errors.Is(task.Err(), settlement.ErrShuttingDown) {
		logger.Warn("rejecting deferred request during shutdown")
		return command.Fail(MessageShuttingDown)
	}
	logger.Info("🟢 deferred request accepted")
	return command.Accepted()
}
