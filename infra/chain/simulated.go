// Package chain implements settlement.Settler against an EVM token
// contract, plus a simulated settler for development and tests.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amirasaad/settlement/pkg/settlement"
	"github.com/ethereum/go-ethereum/crypto"
)

// Simulated modes.
const (
	ModeSuccess = "success"
	ModeRevert  = "revert"
	ModeError   = "error"
	ModeNever   = "never"
)

// ErrSubmit wraps failures to broadcast a call.
var ErrSubmit = errors.New("chain: submit failed")

// Simulated mines every call after Delay with the outcome chosen by Mode.
type Simulated struct {
	Delay time.Duration
	Mode  string

	mu        sync.Mutex
	submitted map[string]time.Time
	now       func() time.Time
}

// NewSimulated returns a simulated settler. An empty mode means success.
func NewSimulated(delay time.Duration, mode string) (*Simulated, error) {
	switch mode {
	case "":
		mode = ModeSuccess
	case ModeSuccess, ModeRevert, ModeError, ModeNever:
	default:
		return nil, fmt.Errorf("chain: unknown simulated mode %q", mode)
	}
	return &Simulated{
		Delay:     delay,
		Mode:      mode,
		submitted: make(map[string]time.Time),
		now:       time.Now,
	}, nil
}

// Submit implements settlement.Settler.
func (s *Simulated) Submit(ctx context.Context, order settlement.Order) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Mode == ModeError {
		return "", fmt.Errorf("%w: simulated rpc error", ErrSubmit)
	}
	hash := crypto.Keccak256Hash(order.TransactionID[:], []byte(order.Concept)).Hex()
	s.mu.Lock()
	s.submitted[hash] = s.now()
	s.mu.Unlock()
	return hash, nil
}

// Wait implements settlement.Settler.
func (s *Simulated) Wait(ctx context.Context, hash string) (settlement.Receipt, error) {
	if s.Mode == ModeNever {
		<-ctx.Done()
		return settlement.Receipt{}, ctx.Err()
	}
	timer := time.NewTimer(s.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return settlement.Receipt{}, ctx.Err()
	case <-timer.C:
	}
	return s.receipt(hash), nil
}

// Receipt implements settlement.Settler.
func (s *Simulated) Receipt(_ context.Context, hash string) (settlement.Receipt, error) {
	if s.Mode == ModeNever {
		return settlement.Receipt{}, settlement.ErrNotMined
	}
	s.mu.Lock()
	at, ok := s.submitted[hash]
	s.mu.Unlock()
	if ok && s.now().Sub(at) < s.Delay {
		return settlement.Receipt{}, settlement.ErrNotMined
	}
	return s.receipt(hash), nil
}

func (s *Simulated) receipt(hash string) settlement.Receipt {
	return settlement.Receipt{Hash: hash, Success: s.Mode == ModeSuccess}
}

// NewAddress implements settlement.Settler with a fresh key pair.
func (s *Simulated) NewAddress(context.Context) (string, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("chain: generate key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}
