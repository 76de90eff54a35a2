// Package publisher turns command results into outgoing envelopes
// correlated to the request that produced them.
package publisher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amirasaad/settlement/pkg/command"
	"github.com/amirasaad/settlement/pkg/hub"
)

// Publisher deposits outgoing envelopes with the Hub.
type Publisher struct {
	client hub.Client
	source string
	logger *slog.Logger
}

// New creates a publisher that signs envelopes with source.
func New(client hub.Client, source string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		source: source,
		logger: logger.With("component", "publisher"),
	}
}

// Publish emits res on topic as a reply to req. A success carries
// {"data": payload}; a failure carries {"error": message} and the
// validation messages under "errors" when there are any.
func (p *Publisher) Publish(ctx context.Context, req hub.Envelope, topic string, res command.Result) error {
	res = res.Normalize()
	if res.Success {
		return p.send(ctx, req.Reply(topic, p.source, hub.StatusSuccess, map[string]any{"data": res.Payload}))
	}
	data := map[string]any{"error": res.Message}
	if len(res.Errors) > 0 {
		data["errors"] = res.Errors
	}
	return p.send(ctx, req.Reply(topic, p.source, hub.StatusFailure, data))
}

// Respond emits a successful response carrying payload.
func (p *Publisher) Respond(ctx context.Context, req hub.Envelope, topic string, payload any) error {
	return p.Publish(ctx, req, topic, command.OK("", payload))
}

// BlockchainError emits a settlement failure on the shared error topic.
func (p *Publisher) BlockchainError(ctx context.Context, req hub.Envelope, message string) error {
	return p.Publish(ctx, req, hub.TopicBlockchainError, command.Fail(message))
}

func (p *Publisher) send(ctx context.Context, env hub.Envelope) error {
	logger := p.logger.With(
		"topic", env.Topic,
		"correlation_id", env.CorrelationID,
		"target", env.Target,
		"status", env.Status,
	)
	if err := p.client.Send(ctx, env); err != nil {
		logger.Error("❌ failed to publish event", "error", err)
		return fmt.Errorf("publish %s: %w", env.Topic, err)
	}
	logger.Info("📤 event published")
	return nil
}
