package dispatch

import (
	"context"
	"log/slog"

	"github.com/amirasaad/settlement/pkg/command"
	"github.com/amirasaad/settlement/pkg/hub"
)

// ResultPublisher emits the result of a routed envelope.
type ResultPublisher interface {
	Publish(ctx context.Context, req hub.Envelope, topic string, res command.Result) error
}

// Router resolves inbound envelopes to operations. Route never panics and
// never returns an error: every failure is either published or logged.
type Router struct {
	registry  *Registry
	publisher ResultPublisher
	logger    *slog.Logger
}

// NewRouter creates a router over registry.
func NewRouter(registry *Registry, publisher ResultPublisher, logger *slog.Logger) *Router {
	return &Router{
		registry:  registry,
		publisher: publisher,
		logger:    logger.With("component", "router"),
	}
}

// Route implements hub.Handler.
func (r *Router) Route(ctx context.Context, env hub.Envelope) {
	logger := r.logger.With(
		"topic", env.Topic,
		"correlation_id", env.CorrelationID,
		"source", env.Source,
	)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("❌ panic while routing envelope", "panic", rec)
		}
	}()

	if err := env.Validate(); err != nil {
		logger.Warn("dropping envelope with incomplete metadata", "error", err)
		return
	}
	kind, ok := hub.KindFromTopic(env.Topic)
	if !ok {
		logger.Warn("dropping envelope with unknown topic")
		return
	}
	op, ok := r.registry.Lookup(kind)
	if !ok {
		logger.Warn("dropping envelope without operation", "kind", kind)
		return
	}

	logger = logger.With("kind", kind)
	logger.Info("🟢 routing envelope")
	res := r.execute(ctx, logger, op, kind, env)
	if res.Success && res.Deferred {
		logger.Info("✅ request accepted, outcome follows")
		return
	}
	if res.Success {
		logger.Info("✅ request completed")
	} else {
		logger.Warn("request failed", "message", res.Message, "errors", res.Errors)
	}

	if err := r.publisher.Publish(ctx, env, kind.ResponseTopic(), res); err != nil {
		logger.Error("❌ failed to publish result", "error", err)
	}
}

func (r *Router) execute(
	ctx context.Context,
	logger *slog.Logger,
	op command.Operation,
	kind hub.Kind,
	env hub.Envelope,
) (res command.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("❌ operation panicked", "panic", rec)
			res = command.Fail(command.MessageInternalError)
		}
	}()
	return op.Execute(ctx, kind, env).Normalize()
}
