package ledger_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/amirasaad/settlement/infra/repository/memory"
	"github.com/amirasaad/settlement/pkg/domain"
	"github.com/amirasaad/settlement/pkg/ledger"
	"github.com/amirasaad/settlement/pkg/lock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newService(t *testing.T) (*ledger.Service, *memory.UoW) {
	t.Helper()
	uow := memory.NewUoW()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ledger.New(uow, lock.NewKeyed(), logger), uow
}

func fundedOwner(t *testing.T, svc *ledger.Service, email, fiat string) *domain.Owner {
	t.Helper()
	ctx := context.Background()
	o, err := svc.OpenWallet(ctx, "owner", email, domain.OwnerTypePerson, "")
	require.NoError(t, err)
	if !dec(fiat).IsZero() {
		_, _, err = svc.Deposit(ctx, o.ID, dec(fiat))
		require.NoError(t, err)
	}
	return o
}

func fiatBalance(t *testing.T, svc *ledger.Service, id uuid.UUID) decimal.Decimal {
	t.Helper()
	o, err := svc.Owner(context.Background(), id)
	require.NoError(t, err)
	return o.Wallet.FiatBalance
}

func TestWithdrawOverBalanceLeavesWalletUntouched(t *testing.T) {
	t.Parallel()
	svc, _ := newService(t)
	a := fundedOwner(t, svc, "a@example.com", "100.00")

	_, _, err := svc.Withdraw(context.Background(), a.ID, dec("150.00"))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.True(t, fiatBalance(t, svc, a.ID).Equal(dec("100.00")))

	rows, err := svc.FiatHistory(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "only the deposit row")
}

func TestPaymentWritesPairedRows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)
	a := fundedOwner(t, svc, "a@example.com", "100.00")
	b := fundedOwner(t, svc, "b@example.com", "0")

	res, err := svc.Transfer(ctx, a.ID, b.ID, dec("40.00"))
	require.NoError(t, err)
	assert.True(t, res.Sender.FiatBalance.Equal(dec("60.00")))
	assert.True(t, res.Recipient.FiatBalance.Equal(dec("40.00")))
	assert.True(t, fiatBalance(t, svc, a.ID).Equal(dec("60.00")))
	assert.True(t, fiatBalance(t, svc, b.ID).Equal(dec("40.00")))

	assert.Equal(t, domain.FiatConceptPayment, res.Debit.Concept)
	assert.Equal(t, domain.FiatConceptReceipt, res.Credit.Concept)
	assert.True(t, res.Debit.Amount.Add(res.Credit.Amount).IsZero())
	assert.Equal(t, res.Debit.TransactionDate, res.Credit.TransactionDate)

	bRows, err := svc.FiatHistory(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, bRows, 1)
	assert.True(t, bRows[0].Amount.Equal(dec("40.00")))
}

func TestTransferPreconditions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)
	a := fundedOwner(t, svc, "a@example.com", "100.00")
	b := fundedOwner(t, svc, "b@example.com", "0")

	tests := []struct {
		name string
		from uuid.UUID
		to   uuid.UUID
		amt  string
		want error
	}{
		{"same owner", a.ID, a.ID, "1.00", domain.ErrSameOwner},
		{"zero amount", a.ID, b.ID, "0", domain.ErrAmountMustBePositive},
		{"unknown recipient", a.ID, uuid.New(), "1.00", domain.ErrOwnerNotFound},
		{"insufficient", b.ID, a.ID, "1.00", domain.ErrInsufficientFunds},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Transfer(ctx, tc.from, tc.to, dec(tc.amt))
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.True(t, fiatBalance(t, svc, a.ID).Equal(dec("100.00")))
	assert.True(t, fiatBalance(t, svc, b.ID).IsZero())
}

func TestConcurrentTransfersKeepTotals(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)
	a := fundedOwner(t, svc, "a@example.com", "100.00")
	b := fundedOwner(t, svc, "b@example.com", "100.00")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.Transfer(ctx, a.ID, b.ID, dec("3.00"))
		}()
		go func() {
			defer wg.Done()
			_, _ = svc.Transfer(ctx, b.ID, a.ID, dec("2.00"))
		}()
	}
	wg.Wait()

	total := fiatBalance(t, svc, a.ID).Add(fiatBalance(t, svc, b.ID))
	assert.True(t, total.Equal(dec("200.00")), "total %s", total)
	assert.False(t, fiatBalance(t, svc, a.ID).IsNegative())
	assert.False(t, fiatBalance(t, svc, b.ID).IsNegative())
}

func TestOpenWalletRejectsTakenEmail(t *testing.T) {
	t.Parallel()
	svc, _ := newService(t)
	fundedOwner(t, svc, "a@example.com", "0")
	_, err := svc.OpenWallet(context.Background(), "other", "a@example.com", domain.OwnerTypePerson, "")
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestPurchaseSettlement(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("success credits crypto once", func(t *testing.T) {
		svc, _ := newService(t)
		a := fundedOwner(t, svc, "a@example.com", "100.00")

		tx, err := svc.ReservePurchase(ctx, a.ID, dec("10"), dec("2.5"))
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, tx.Status)
		assert.True(t, fiatBalance(t, svc, a.ID).Equal(dec("75.00")))

		done, err := svc.Finalize(ctx, tx.ID, ledger.Outcome{Status: domain.StatusSuccess, Hash: "0x1"})
		require.NoError(t, err)
		assert.Equal(t, "0x1", done.BlockchainTxHash)

		_, err = svc.Finalize(ctx, tx.ID, ledger.Outcome{Status: domain.StatusFailure})
		assert.ErrorIs(t, err, domain.ErrAlreadyFinal)

		o, err := svc.Owner(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, o.Wallet.CryptoBalance.Equal(dec("10")))
		assert.True(t, o.Wallet.FiatBalance.Equal(dec("75.00")))
	})

	t.Run("failure refunds fiat", func(t *testing.T) {
		svc, _ := newService(t)
		a := fundedOwner(t, svc, "a@example.com", "100.00")

		tx, err := svc.ReservePurchase(ctx, a.ID, dec("10"), dec("2.5"))
		require.NoError(t, err)
		_, err = svc.Finalize(ctx, tx.ID, ledger.Outcome{Status: domain.StatusFailure})
		require.NoError(t, err)

		o, err := svc.Owner(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, o.Wallet.FiatBalance.Equal(dec("100.00")))
		assert.True(t, o.Wallet.CryptoBalance.IsZero())

		// The reservation wrote no fiat row, so the refund writes none either.
		rows, err := svc.FiatHistory(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, domain.FiatConceptDeposit, rows[0].Concept)
	})

	t.Run("insufficient fiat creates nothing", func(t *testing.T) {
		svc, _ := newService(t)
		a := fundedOwner(t, svc, "a@example.com", "10.00")

		_, err := svc.ReservePurchase(ctx, a.ID, dec("10"), dec("2.5"))
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		history, err := svc.CryptoHistory(ctx, a.ID)
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestSaleSettlement(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)
	a := fundedOwner(t, svc, "a@example.com", "100.00")
	buy, err := svc.ReservePurchase(ctx, a.ID, dec("4"), dec("5"))
	require.NoError(t, err)
	_, err = svc.Finalize(ctx, buy.ID, ledger.Outcome{Status: domain.StatusSuccess})
	require.NoError(t, err)

	sell, err := svc.ReserveSale(ctx, a.ID, dec("3"), dec("6"))
	require.NoError(t, err)
	o, _ := svc.Owner(ctx, a.ID)
	assert.True(t, o.Wallet.CryptoBalance.Equal(dec("1")))

	_, err = svc.Finalize(ctx, sell.ID, ledger.Outcome{Status: domain.StatusSuccess})
	require.NoError(t, err)
	o, _ = svc.Owner(ctx, a.ID)
	assert.True(t, o.Wallet.FiatBalance.Equal(dec("98.00")))

	_, err = svc.ReserveSale(ctx, a.ID, dec("5"), dec("6"))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestReserveRejectsFiatValueRoundingToZero(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)
	a := fundedOwner(t, svc, "a@example.com", "100.00")
	buy, err := svc.ReservePurchase(ctx, a.ID, dec("1"), dec("1"))
	require.NoError(t, err)
	_, err = svc.Finalize(ctx, buy.ID, ledger.Outcome{Status: domain.StatusSuccess})
	require.NoError(t, err)

	_, err = svc.ReserveSale(ctx, a.ID, dec("0.01"), dec("0.4"))
	assert.ErrorIs(t, err, domain.ErrAmountMustBePositive)
	_, err = svc.ReservePurchase(ctx, a.ID, dec("0.01"), dec("0.4"))
	assert.ErrorIs(t, err, domain.ErrAmountMustBePositive)

	o, err := svc.Owner(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, o.Wallet.CryptoBalance.Equal(dec("1")))
	assert.True(t, o.Wallet.FiatBalance.Equal(dec("99.00")))
	history, err := svc.CryptoHistory(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1, "only the settled purchase")
}

func TestTransferCrypto(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)
	a := fundedOwner(t, svc, "a@example.com", "100.00")
	b := fundedOwner(t, svc, "b@example.com", "0")
	buy, err := svc.ReservePurchase(ctx, a.ID, dec("5"), dec("1"))
	require.NoError(t, err)
	_, err = svc.Finalize(ctx, buy.ID, ledger.Outcome{Status: domain.StatusSuccess})
	require.NoError(t, err)

	tx, err := svc.TransferCrypto(ctx, a.ID, b.ID, dec("2"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, tx.Status)
	assert.True(t, tx.ConversionRate.Equal(decimal.NewFromInt(1)))

	ob, _ := svc.Owner(ctx, b.ID)
	assert.True(t, ob.Wallet.CryptoBalance.Equal(dec("2")))

	_, err = svc.TransferCrypto(ctx, b.ID, a.ID, dec("3"))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestCloseWallet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)
	a := fundedOwner(t, svc, "a@example.com", "10.00")

	require.NoError(t, svc.CloseWallet(ctx, a.ID))
	_, err := svc.Owner(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrOwnerNotFound)
	_, err = svc.FiatHistory(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrOwnerNotFound)
}
