// Package hubclient carries envelopes between the service and the Hub.
//
// HTTP publishes to the Hub REST endpoint and receives through the fiber
// callback in webapi. Redis Streams and Kafka carry whole JSON envelopes in
// both directions. Memory records envelopes in process.
package hubclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/amirasaad/settlement/pkg/hub"
)

// ErrPublish wraps every transport failure to deposit an envelope.
var ErrPublish = errors.New("hub: publish failed")

// Consumer delivers inbound envelopes to a handler until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, handler hub.Handler) error
}

func encode(env hub.Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("hub: encode envelope: %w", err)
	}
	return b, nil
}

func decode(raw []byte) (hub.Envelope, error) {
	var env hub.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return hub.Envelope{}, fmt.Errorf("hub: decode envelope: %w", err)
	}
	return env, nil
}
