package commands_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/amirasaad/settlement/infra/chain"
	"github.com/amirasaad/settlement/infra/hubclient"
	"github.com/amirasaad/settlement/infra/repository/memory"
	"github.com/amirasaad/settlement/pkg/command"
	"github.com/amirasaad/settlement/pkg/commands"
	"github.com/amirasaad/settlement/pkg/domain"
	"github.com/amirasaad/settlement/pkg/hub"
	"github.com/amirasaad/settlement/pkg/ledger"
	"github.com/amirasaad/settlement/pkg/publisher"
	"github.com/amirasaad/settlement/pkg/rate"
	"github.com/amirasaad/settlement/pkg/settlement"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t      *testing.T
	ledger *ledger.Service
	tasks  *settlement.Tasks
	hub    *hubclient.Memory
	deps   *commands.Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := ledger.New(memory.NewUoW(), nil, logger)
	tasks := settlement.NewTasks(logger)
	client := hubclient.NewMemory(logger)
	pub := publisher.New(client, "settlement-service", logger)
	sim, err := chain.NewSimulated(0, chain.ModeSuccess)
	require.NoError(t, err)
	worker := settlement.NewWorker(l, sim, pub, tasks, settlement.Config{
		PollInterval: 10 * time.Millisecond,
		Deadline:     2 * time.Second,
	}, logger)
	fixed, err := rate.NewFixed(decimal.NewFromInt(2))
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tasks.Shutdown(ctx)
	})

	return &fixture{
		t:      t,
		ledger: l,
		tasks:  tasks,
		hub:    client,
		deps: &commands.Deps{
			Ledger:      l,
			Settlements: worker,
			Tasks:       tasks,
			Publisher:   pub,
			Rates:       fixed,
			Addresses:   sim,
			Logger:      logger,
		},
	}
}

func (f *fixture) owner(email string, fiat string) *domain.Owner {
	f.t.Helper()
	ctx := context.Background()
	o, err := f.ledger.OpenWallet(ctx, "Test", email, domain.OwnerTypePerson, "0xabc")
	require.NoError(f.t, err)
	if fiat != "" {
		_, _, err = f.ledger.Deposit(ctx, o.ID, decimal.RequireFromString(fiat))
		require.NoError(f.t, err)
	}
	return o
}

func (f *fixture) wait(n int) []hub.Envelope {
	f.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sent, err := f.hub.WaitFor(ctx, n)
	require.NoError(f.t, err, "expected %d published envelopes", n)
	return sent
}

func envelope(kind hub.Kind, data map[string]any) hub.Envelope {
	return hub.Envelope{
		Topic:         kind.RequestTopic(),
		Data:          data,
		CorrelationID: "corr-1",
		Source:        "wallet-app",
	}
}

func execute[T any](cmd command.Command[T], kind hub.Kind, data map[string]any) command.Result {
	return command.Execute[T](context.Background(), cmd, kind, envelope(kind, data))
}

func TestAllBindsEveryKindOnce(t *testing.T) {
	ops := commands.All(commands.Deps{})
	require.Len(t, ops, len(hub.Kinds()))
	for _, k := range hub.Kinds() {
		n := 0
		for _, op := range ops {
			if op.CanHandle(k) {
				n++
			}
		}
		assert.Equal(t, 1, n, "kind %s", k)
	}
}

func TestWalletCreation(t *testing.T) {
	f := newFixture(t)
	cmd := &commands.WalletCreation{Deps: f.deps}

	t.Run("creates wallet with address", func(t *testing.T) {
		res := execute[commands.WalletCreationRequest](cmd, hub.KindWalletCreation, map[string]any{
			"name":      "Ada",
			"email":     "Ada@Example.com",
			"ownerType": "business",
		})
		require.True(t, res.Success, res.Message)
		payload := res.Payload.(map[string]any)
		assert.Equal(t, "ada@example.com", payload["email"])
		assert.Equal(t, "BUSINESS", payload["ownerType"])
		wallet := payload["wallet"].(map[string]any)
		assert.Regexp(t, "^0x[0-9a-fA-F]{40}$", wallet["address"])
		assert.Equal(t, "0.00", wallet["fiatBalance"])
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		res := execute[commands.WalletCreationRequest](cmd, hub.KindWalletCreation, map[string]any{
			"name":  "Ada",
			"email": "ada@example.com",
		})
		assert.False(t, res.Success)
		assert.Equal(t, domain.ErrEmailTaken.Error(), res.Message)
	})

	t.Run("rejects malformed email", func(t *testing.T) {
		res := execute[commands.WalletCreationRequest](cmd, hub.KindWalletCreation, map[string]any{
			"name":  "Ada",
			"email": "not-an-email",
		})
		assert.False(t, res.Success)
		assert.Equal(t, command.MessageInvalidData, res.Message)
		assert.NotEmpty(t, res.Errors)
	})

	t.Run("rejects unknown owner type", func(t *testing.T) {
		res := execute[commands.WalletCreationRequest](cmd, hub.KindWalletCreation, map[string]any{
			"name":      "Bob",
			"email":     "bob@example.com",
			"ownerType": "robot",
		})
		assert.False(t, res.Success)
		assert.Equal(t, command.MessageInvalidData, res.Message)
	})
}

type failingAddresses struct{}

func (failingAddresses) NewAddress(context.Context) (string, error) {
	return "", errors.New("keystore locked")
}

func TestUnexpectedErrorsAreHidden(t *testing.T) {
	f := newFixture(t)
	deps := *f.deps
	deps.Addresses = failingAddresses{}

	res := execute[commands.WalletCreationRequest](&commands.WalletCreation{Deps: &deps}, hub.KindWalletCreation, map[string]any{
		"name":  "Ada",
		"email": "ada@example.com",
	})
	assert.False(t, res.Success)
	assert.Equal(t, command.MessageInternalError, res.Message)
}

func TestGetBalancesAndDeletion(t *testing.T) {
	f := newFixture(t)
	o := f.owner("a@example.com", "12.5")

	res := execute[commands.OwnerRequest](&commands.GetBalances{Deps: f.deps}, hub.KindGetBalances, map[string]any{
		"ownerId": o.ID.String(),
	})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "12.50", res.Payload.(map[string]any)["fiatBalance"])

	res = execute[commands.OwnerRequest](&commands.WalletDeletion{Deps: f.deps}, hub.KindWalletDeletion, map[string]any{
		"ownerId": o.ID.String(),
	})
	require.True(t, res.Success, res.Message)

	_, err := f.ledger.Owner(context.Background(), o.ID)
	assert.ErrorIs(t, err, domain.ErrOwnerNotFound)

	res = execute[commands.OwnerRequest](&commands.GetBalances{Deps: f.deps}, hub.KindGetBalances, map[string]any{
		"ownerId": o.ID.String(),
	})
	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrOwnerNotFound.Error(), res.Message)
}

func TestMissingOwnerIDIsInvalidData(t *testing.T) {
	f := newFixture(t)
	res := execute[commands.OwnerRequest](&commands.GetBalances{Deps: f.deps}, hub.KindGetBalances, map[string]any{})
	assert.False(t, res.Success)
	assert.Equal(t, command.MessageInvalidData, res.Message)
	assert.Equal(t, []string{"ownerId failed on 'required'"}, res.Errors)
}

func TestFiatDepositIsDeferred(t *testing.T) {
	f := newFixture(t)
	o := f.owner("a@example.com", "")

	res := execute[commands.AmountRequest](&commands.FiatDeposit{Deps: f.deps}, hub.KindFiatDeposit, map[string]any{
		"ownerId": o.ID.String(),
		"amount":  "100",
	})
	require.True(t, res.Success, res.Message)
	assert.True(t, res.Deferred)
	assert.Nil(t, res.Payload)

	sent := f.wait(1)
	require.Len(t, sent, 1)
	assert.Equal(t, "fiat.deposit.response", sent[0].Topic)
	assert.Equal(t, "corr-1", sent[0].CorrelationID)
	assert.Equal(t, "wallet-app", sent[0].Target)
	assert.Equal(t, hub.StatusSuccess, sent[0].Status)

	payload := sent[0].Data["data"].(map[string]any)
	assert.Equal(t, "100.00", payload["balances"].(map[string]any)["fiatBalance"])
}

func TestFiatWithdrawalPrecheck(t *testing.T) {
	f := newFixture(t)
	o := f.owner("a@example.com", "100")

	res := execute[commands.AmountRequest](&commands.FiatWithdrawal{Deps: f.deps}, hub.KindFiatWithdrawal, map[string]any{
		"ownerId": o.ID.String(),
		"amount":  "150.00",
	})
	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrInsufficientFunds.Error(), res.Message)
	assert.Empty(t, f.hub.Sent())

	owner, err := f.ledger.Owner(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, owner.Wallet.FiatBalance.Equal(decimal.NewFromInt(100)))
}

func TestFiatPayment(t *testing.T) {
	f := newFixture(t)
	a := f.owner("a@example.com", "100")
	b := f.owner("b@example.com", "")
	cmd := &commands.FiatPayment{Deps: f.deps}

	t.Run("rejects self payment", func(t *testing.T) {
		res := execute[commands.PeerRequest](cmd, hub.KindFiatPayment, map[string]any{
			"ownerId":     a.ID.String(),
			"recipientId": a.ID.String(),
			"amount":      "10",
		})
		assert.False(t, res.Success)
		assert.Equal(t, command.MessageInvalidData, res.Message)
	})

	t.Run("rejects non positive amount", func(t *testing.T) {
		res := execute[commands.PeerRequest](cmd, hub.KindFiatPayment, map[string]any{
			"ownerId":     a.ID.String(),
			"recipientId": b.ID.String(),
			"amount":      "0",
		})
		assert.False(t, res.Success)
		assert.Equal(t, command.MessageInvalidData, res.Message)
	})

	t.Run("moves funds", func(t *testing.T) {
		res := execute[commands.PeerRequest](cmd, hub.KindFiatPayment, map[string]any{
			"ownerId":     a.ID.String(),
			"recipientId": b.ID.String(),
			"amount":      40,
		})
		require.True(t, res.Success, res.Message)
		assert.True(t, res.Deferred)

		sent := f.wait(1)
		assert.Equal(t, "fiat.payment.response", sent[0].Topic)

		ctx := context.Background()
		sender, err := f.ledger.Owner(ctx, a.ID)
		require.NoError(t, err)
		recipient, err := f.ledger.Owner(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "60", sender.Wallet.FiatBalance.String())
		assert.Equal(t, "40", recipient.Wallet.FiatBalance.String())
	})
}

func TestBuyCryptoSettles(t *testing.T) {
	f := newFixture(t)
	o := f.owner("a@example.com", "100")

	res := execute[commands.AmountRequest](&commands.BuyCrypto{Deps: f.deps}, hub.KindBuyCrypto, map[string]any{
		"ownerId": o.ID.String(),
		"amount":  "10",
	})
	require.True(t, res.Success, res.Message)
	assert.True(t, res.Deferred)

	sent := f.wait(1)
	require.Len(t, sent, 1)
	assert.Equal(t, "buy.crypto.response", sent[0].Topic)
	assert.Equal(t, hub.StatusSuccess, sent[0].Status)
	payload := sent[0].Data["data"].(map[string]any)
	assert.Equal(t, "SUCCESS", payload["status"])
	assert.Equal(t, "20.00", payload["fiatAmount"])

	owner, err := f.ledger.Owner(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, owner.Wallet.CryptoBalance.Equal(decimal.NewFromInt(10)))
	assert.True(t, owner.Wallet.FiatBalance.Equal(decimal.NewFromInt(80)))
}

func TestBuyCryptoInsufficientFiat(t *testing.T) {
	f := newFixture(t)
	o := f.owner("a@example.com", "10")

	res := execute[commands.AmountRequest](&commands.BuyCrypto{Deps: f.deps}, hub.KindBuyCrypto, map[string]any{
		"ownerId": o.ID.String(),
		"amount":  "10",
	})
	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrInsufficientFunds.Error(), res.Message)
}

func TestSellCryptoWithoutCrypto(t *testing.T) {
	f := newFixture(t)
	o := f.owner("a@example.com", "10")

	res := execute[commands.AmountRequest](&commands.SellCrypto{Deps: f.deps}, hub.KindSellCrypto, map[string]any{
		"ownerId": o.ID.String(),
		"amount":  "1",
	})
	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrInsufficientFunds.Error(), res.Message)
}

func TestCryptoTransferIsImmediate(t *testing.T) {
	f := newFixture(t)
	a := f.owner("a@example.com", "100")
	b := f.owner("b@example.com", "")

	buy := execute[commands.AmountRequest](&commands.BuyCrypto{Deps: f.deps}, hub.KindBuyCrypto, map[string]any{
		"ownerId": a.ID.String(),
		"amount":  "5",
	})
	require.True(t, buy.Success, buy.Message)
	f.wait(1)

	res := execute[commands.PeerRequest](&commands.CryptoTransfer{Deps: f.deps}, hub.KindCryptoTransfer, map[string]any{
		"ownerId":     a.ID.String(),
		"recipientId": b.ID.String(),
		"amount":      "2",
	})
	require.True(t, res.Success, res.Message)
	assert.False(t, res.Deferred)
	payload := res.Payload.(map[string]any)
	tx := payload["transaction"].(map[string]any)
	assert.Equal(t, "SUCCESS", tx["status"])
	assert.Equal(t, "1", tx["conversionRate"])
	assert.Equal(t, "3.00", payload["balances"].(map[string]any)["cryptoBalance"])
}

func TestHistoriesUseExplicitTopics(t *testing.T) {
	f := newFixture(t)
	o := f.owner("a@example.com", "100")

	res := execute[commands.OwnerRequest](&commands.FiatHistory{Deps: f.deps}, hub.KindFiatHistory, map[string]any{
		"ownerId": o.ID.String(),
	})
	require.True(t, res.Success, res.Message)
	sent := f.wait(1)
	assert.Equal(t, "fiat.history.response", sent[0].Topic)
	items := sent[0].Data["data"].(map[string]any)["transactions"].([]map[string]any)
	require.Len(t, items, 1)
	assert.Equal(t, "DEPOSIT", items[0]["concept"])

	res = execute[commands.OwnerRequest](&commands.CryptoHistory{Deps: f.deps}, hub.KindCryptoHistory, map[string]any{
		"ownerId": o.ID.String(),
	})
	require.True(t, res.Success, res.Message)
	sent = f.wait(2)
	assert.Equal(t, "crypto.history.response", sent[1].Topic)
}

func TestDeferredRejectedAfterShutdown(t *testing.T) {
	f := newFixture(t)
	o := f.owner("a@example.com", "100")
	require.NoError(t, f.tasks.Shutdown(context.Background()))

	res := execute[commands.AmountRequest](&commands.FiatDeposit{Deps: f.deps}, hub.KindFiatDeposit, map[string]any{
		"ownerId": o.ID.String(),
		"amount":  "1",
	})
	assert.False(t, res.Success)
	assert.Equal(t, commands.MessageShuttingDown, res.Message)

	res = execute[commands.AmountRequest](&commands.BuyCrypto{Deps: f.deps}, hub.KindBuyCrypto, map[string]any{
		"ownerId": o.ID.String(),
		"amount":  "10",
	})
	assert.False(t, res.Success)
	assert.Equal(t, commands.MessageShuttingDown, res.Message)

	owner, err := f.ledger.Owner(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, owner.Wallet.FiatBalance.Equal(decimal.NewFromInt(100)), "fiat %s", owner.Wallet.FiatBalance)
	history, err := f.ledger.CryptoHistory(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Empty(t, f.hub.Sent())
}
