package settlement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/amirasaad/settlement/infra/repository/memory"
	"github.com/amirasaad/settlement/pkg/domain"
	"github.com/amirasaad/settlement/pkg/hub"
	"github.com/amirasaad/settlement/pkg/ledger"
	"github.com/amirasaad/settlement/pkg/lock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type published struct {
	Topic   string
	Request hub.Envelope
	Payload any
	Message string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Respond(_ context.Context, req hub.Envelope, topic string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Topic: topic, Request: req, Payload: payload})
	return nil
}

func (p *recordingPublisher) BlockchainError(_ context.Context, req hub.Envelope, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Topic: hub.TopicBlockchainError, Request: req, Message: message})
	return nil
}

func (p *recordingPublisher) Events() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

// fakeSettler mines every call after delay in the configured mode:
// "success", "revert", "error" (submit fails) or "never".
type fakeSettler struct {
	mode  string
	delay time.Duration
}

func (s *fakeSettler) Submit(_ context.Context, order Order) (string, error) {
	if s.mode == "error" {
		return "", errors.New("rpc unavailable")
	}
	return "0x" + order.TransactionID.String(), nil
}

func (s *fakeSettler) Wait(ctx context.Context, hash string) (Receipt, error) {
	if s.mode == "never" {
		<-ctx.Done()
		return Receipt{}, ctx.Err()
	}
	select {
	case <-ctx.Done():
		return Receipt{}, ctx.Err()
	case <-time.After(s.delay):
	}
	return Receipt{Hash: hash, Success: s.mode == "success"}, nil
}

func (s *fakeSettler) Receipt(_ context.Context, hash string) (Receipt, error) {
	if s.mode == "never" {
		return Receipt{}, ErrNotMined
	}
	return Receipt{Hash: hash, Success: s.mode == "success"}, nil
}

func (s *fakeSettler) NewAddress(context.Context) (string, error) { return "0xfeed", nil }

type fixture struct {
	ledger    *ledger.Service
	publisher *recordingPublisher
	tasks     *Tasks
	owner     *domain.Owner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	svc := ledger.New(memory.NewUoW(), lock.NewKeyed(), discard())
	owner, err := svc.OpenWallet(context.Background(), "buyer", "buyer@example.com", domain.OwnerTypePerson, "0xfeed")
	require.NoError(t, err)
	_, _, err = svc.Deposit(context.Background(), owner.ID, decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	tasks := NewTasks(discard())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = tasks.Shutdown(ctx)
	})
	return &fixture{ledger: svc, publisher: &recordingPublisher{}, tasks: tasks, owner: owner}
}

func (f *fixture) worker(s Settler, cfg Config) *Worker {
	return NewWorker(f.ledger, s, f.publisher, f.tasks, cfg, discard())
}

func (f *fixture) request(kind hub.Kind, amt, rate string) Request {
	return Request{
		Kind: kind,
		Envelope: hub.Envelope{
			Topic:         kind.RequestTopic(),
			CorrelationID: "corr-1",
			Source:        "tester",
		},
		OwnerID: f.owner.ID,
		Address: f.owner.Wallet.Address,
		Amount:  decimal.RequireFromString(amt),
		Rate:    decimal.RequireFromString(rate),
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
