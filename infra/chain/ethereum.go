package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/amirasaad/settlement/pkg/amount"
	"github.com/amirasaad/settlement/pkg/domain"
	"github.com/amirasaad/settlement/pkg/settlement"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// tokenABI is the subset of the settlement token the service calls.
const tokenABI = `[
	{"type":"function","name":"mint","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"burn","stateMutability":"nonpayable",
	 "inputs":[{"name":"from","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]}
]`

// Backend is the RPC surface the Ethereum settler needs.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// EthereumConfig configures the token contract settler.
type EthereumConfig struct {
	ChainID      int64
	Contract     string
	PrivateKey   string
	PollInterval time.Duration
}

// Ethereum mints on purchases and burns on sales through the token contract.
type Ethereum struct {
	backend  Backend
	contract *bind.BoundContract
	key      *ecdsa.PrivateKey
	chainID  *big.Int
	poll     time.Duration
	logger   *slog.Logger
}

// DialEthereum connects to rpcURL and binds the token contract.
func DialEthereum(ctx context.Context, rpcURL string, cfg EthereumConfig, logger *slog.Logger) (*Ethereum, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}
	return NewEthereum(client, cfg, logger)
}

// NewEthereum binds the token contract on backend.
func NewEthereum(backend Backend, cfg EthereumConfig, logger *slog.Logger) (*Ethereum, error) {
	if !common.IsHexAddress(cfg.Contract) {
		return nil, fmt.Errorf("chain: invalid contract address %q", cfg.Contract)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("chain: invalid private key: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(tokenABI))
	if err != nil {
		return nil, fmt.Errorf("chain: parse abi: %w", err)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	address := common.HexToAddress(cfg.Contract)
	return &Ethereum{
		backend:  backend,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		key:      key,
		chainID:  big.NewInt(cfg.ChainID),
		poll:     cfg.PollInterval,
		logger:   logger.With("component", "ethereum-settler", "contract", address.Hex()),
	}, nil
}

// Submit implements settlement.Settler.
func (e *Ethereum) Submit(ctx context.Context, order settlement.Order) (string, error) {
	if !common.IsHexAddress(order.Address) {
		return "", fmt.Errorf("%w: invalid wallet address %q", ErrSubmit, order.Address)
	}
	value, err := amount.ToLedgerInteger(order.Amount)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSubmit, err)
	}

	method := "mint"
	if order.Concept == domain.ConceptSell {
		method = "burn"
	}
	opts, err := bind.NewKeyedTransactorWithChainID(e.key, e.chainID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSubmit, err)
	}
	opts.Context = ctx

	tx, err := e.contract.Transact(opts, method, common.HexToAddress(order.Address), value)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrSubmit, method, err)
	}
	e.logger.Info("📤 token call broadcast", "method", method, "hash", tx.Hash().Hex(),
		"transaction_id", order.TransactionID)
	return tx.Hash().Hex(), nil
}

// Wait implements settlement.Settler by polling for the receipt.
func (e *Ethereum) Wait(ctx context.Context, hash string) (settlement.Receipt, error) {
	ticker := time.NewTicker(e.poll)
	defer ticker.Stop()
	for {
		receipt, err := e.Receipt(ctx, hash)
		if !errors.Is(err, settlement.ErrNotMined) {
			return receipt, err
		}
		select {
		case <-ctx.Done():
			return settlement.Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Receipt implements settlement.Settler.
func (e *Ethereum) Receipt(ctx context.Context, hash string) (settlement.Receipt, error) {
	receipt, err := e.backend.TransactionReceipt(ctx, common.HexToHash(hash))
	if errors.Is(err, ethereum.NotFound) {
		return settlement.Receipt{}, settlement.ErrNotMined
	}
	if err != nil {
		return settlement.Receipt{}, fmt.Errorf("chain: receipt %s: %w", hash, err)
	}
	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	return settlement.Receipt{
		Hash:    receipt.TxHash.Hex(),
		Success: receipt.Status == types.ReceiptStatusSuccessful,
		Block:   block,
	}, nil
}

// NewAddress implements settlement.Settler. The generated key is not kept.
func (e *Ethereum) NewAddress(context.Context) (string, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("chain: generate key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}
