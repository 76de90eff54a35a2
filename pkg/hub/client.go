package hub

import "context"

// Client deposits outgoing envelopes with the Hub.
type Client interface {
	Send(ctx context.Context, env Envelope) error
}

// Handler consumes inbound envelopes. Implementations must not block the
// caller beyond the handling of env itself.
type Handler interface {
	Route(ctx context.Context, env Envelope)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env Envelope)

// Route implements Handler.
func (f HandlerFunc) Route(ctx context.Context, env Envelope) { f(ctx, env) }
