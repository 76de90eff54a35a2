package chain

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirasaad/settlement/pkg/domain"
	"github.com/amirasaad/settlement/pkg/settlement"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedModes(t *testing.T) {
	t.Parallel()
	order := settlement.Order{TransactionID: uuid.New(), Concept: domain.ConceptBuy, Amount: decimal.NewFromInt(1)}

	tests := []struct {
		mode    string
		success bool
	}{
		{ModeSuccess, true},
		{ModeRevert, false},
	}
	for _, tc := range tests {
		t.Run(tc.mode, func(t *testing.T) {
			t.Parallel()
			s, err := NewSimulated(time.Millisecond, tc.mode)
			require.NoError(t, err)
			hash, err := s.Submit(context.Background(), order)
			require.NoError(t, err)
			assert.True(t, len(hash) == 66)

			receipt, err := s.Wait(context.Background(), hash)
			require.NoError(t, err)
			assert.Equal(t, tc.success, receipt.Success)
			assert.Equal(t, hash, receipt.Hash)
		})
	}

	s, err := NewSimulated(0, ModeError)
	require.NoError(t, err)
	_, err = s.Submit(context.Background(), order)
	assert.ErrorIs(t, err, ErrSubmit)

	_, err = NewSimulated(0, "sometimes")
	assert.Error(t, err)
}

func TestSimulatedNever(t *testing.T) {
	t.Parallel()
	s, err := NewSimulated(0, ModeNever)
	require.NoError(t, err)
	hash, err := s.Submit(context.Background(), settlement.Order{TransactionID: uuid.New()})
	require.NoError(t, err)

	_, err = s.Receipt(context.Background(), hash)
	assert.ErrorIs(t, err, settlement.ErrNotMined)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = s.Wait(ctx, hash)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSimulatedReceiptHonoursDelay(t *testing.T) {
	t.Parallel()
	s, err := NewSimulated(time.Hour, ModeSuccess)
	require.NoError(t, err)
	hash, err := s.Submit(context.Background(), settlement.Order{TransactionID: uuid.New()})
	require.NoError(t, err)

	_, err = s.Receipt(context.Background(), hash)
	assert.ErrorIs(t, err, settlement.ErrNotMined)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	receipt, err := s.Receipt(context.Background(), hash)
	require.NoError(t, err)
	assert.True(t, receipt.Success)
}

func TestNewAddressIsHex(t *testing.T) {
	t.Parallel()
	s, err := NewSimulated(0, "")
	require.NoError(t, err)
	a, err := s.NewAddress(context.Background())
	require.NoError(t, err)
	b, err := s.NewAddress(context.Background())
	require.NoError(t, err)
	assert.True(t, common.IsHexAddress(a))
	assert.NotEqual(t, a, b)
}

// receiptBackend answers receipts after a number of misses. Contract calls
// are not expected and would panic on the nil embedded backend.
type receiptBackend struct {
	bind.ContractBackend
	misses int32
	calls  atomic.Int32
	status uint64
}

func (b *receiptBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	if b.calls.Add(1) <= b.misses {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{TxHash: hash, Status: b.status, BlockNumber: big.NewInt(7)}, nil
}

func newTestEthereum(t *testing.T, backend Backend) *Ethereum {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	e, err := NewEthereum(backend, EthereumConfig{
		ChainID:      1337,
		Contract:     "0x00000000000000000000000000000000000000aa",
		PrivateKey:   hex.EncodeToString(crypto.FromECDSA(key)),
		PollInterval: time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return e
}

func TestEthereumWaitPollsUntilMined(t *testing.T) {
	t.Parallel()
	backend := &receiptBackend{misses: 3, status: types.ReceiptStatusSuccessful}
	e := newTestEthereum(t, backend)
	hash := common.HexToHash("0x01").Hex()

	_, err := e.Receipt(context.Background(), hash)
	assert.ErrorIs(t, err, settlement.ErrNotMined)

	receipt, err := e.Wait(context.Background(), hash)
	require.NoError(t, err)
	assert.True(t, receipt.Success)
	assert.Equal(t, uint64(7), receipt.Block)
	assert.Equal(t, hash, receipt.Hash)
}

func TestEthereumRevertedReceipt(t *testing.T) {
	t.Parallel()
	e := newTestEthereum(t, &receiptBackend{status: types.ReceiptStatusFailed})
	receipt, err := e.Receipt(context.Background(), common.HexToHash("0x02").Hex())
	require.NoError(t, err)
	assert.False(t, receipt.Success)
}

func TestEthereumRejectsBadInput(t *testing.T) {
	t.Parallel()
	e := newTestEthereum(t, &receiptBackend{})

	_, err := e.Submit(context.Background(), settlement.Order{Address: "nope", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrSubmit)

	_, err = e.Submit(context.Background(), settlement.Order{
		Address: "0x00000000000000000000000000000000000000bb",
		Amount:  decimal.RequireFromString("0.001"),
	})
	assert.ErrorIs(t, err, ErrSubmit)

	_, err = NewEthereum(&receiptBackend{}, EthereumConfig{Contract: "bad"}, slog.Default())
	assert.Error(t, err)
}
