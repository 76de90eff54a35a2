package hubclient

import (
	"context"
	"log/slog"
	"sync"

	"github.com/amirasaad/settlement/pkg/hub"
)

// Memory keeps every sent envelope in process. It backs local runs
// without a hub and the tests of the packages publishing through it.
type Memory struct {
	mu     sync.Mutex
	sent   []hub.Envelope
	notify chan struct{}
	logger *slog.Logger
}

// NewMemory returns an empty in-process client.
func NewMemory(logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		notify: make(chan struct{}, 1),
		logger: logger.With("component", "hub-memory"),
	}
}

// Send implements hub.Client.
func (m *Memory) Send(_ context.Context, env hub.Envelope) error {
	m.mu.Lock()
	m.sent = append(m.sent, env)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
	m.logger.Debug("envelope recorded", "topic", env.Topic, "correlation_id", env.CorrelationID)
	return nil
}

// Sent returns a copy of the recorded envelopes in send order.
func (m *Memory) Sent() []hub.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]hub.Envelope(nil), m.sent...)
}

// WaitFor blocks until n envelopes were sent or ctx is done.
func (m *Memory) WaitFor(ctx context.Context, n int) ([]hub.Envelope, error) {
	for {
		if sent := m.Sent(); len(sent) >= n {
			return sent, nil
		}
		select {
		case <-m.notify:
		case <-ctx.Done():
			return m.Sent(), ctx.Err()
		}
	}
}
