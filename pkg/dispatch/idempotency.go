package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/amirasaad/settlement/pkg/hub"
	"golang.org/x/sync/singleflight"
)

// KeyExtractor extracts an idempotency key from an envelope.
type KeyExtractor func(hub.Envelope) string

// TopicCorrelationKey identifies a request by topic and correlation id.
func TopicCorrelationKey(env hub.Envelope) string {
	if env.Topic == "" || env.CorrelationID == "" {
		return ""
	}
	return env.Topic + "|" + env.CorrelationID
}

// IdempotencyTracker tracks routed envelopes by key.
type IdempotencyTracker struct {
	processed sync.Map // key -> time.Time
	inflight  singleflight.Group
}

// NewIdempotencyTracker creates a new idempotency tracker.
func NewIdempotencyTracker() *IdempotencyTracker {
	return &IdempotencyTracker{}
}

// Store marks a key as processed.
func (t *IdempotencyTracker) Store(key string) {
	t.processed.Store(key, time.Now())
}

// Seen reports whether key was processed.
func (t *IdempotencyTracker) Seen(key string) bool {
	_, ok := t.processed.Load(key)
	return ok
}

// Prune forgets keys processed before cutoff and returns how many.
func (t *IdempotencyTracker) Prune(cutoff time.Time) int {
	n := 0
	t.processed.Range(func(k, v any) bool {
		if at, ok := v.(time.Time); ok && at.Before(cutoff) {
			t.processed.Delete(k)
			n++
		}
		return true
	})
	return n
}

// WithIdempotency wraps next so that an envelope redelivered with the same
// key is routed at most once per process. Concurrent duplicates wait for
// the in-flight delivery and are then skipped.
func WithIdempotency(
	next hub.Handler,
	tracker *IdempotencyTracker,
	keyExtractor KeyExtractor,
	logger *slog.Logger,
) hub.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return hub.HandlerFunc(func(ctx context.Context, env hub.Envelope) {
		key := keyExtractor(env)
		if key == "" {
			next.Route(ctx, env)
			return
		}
		log := logger.With("topic", env.Topic, "idempotency_key", key)

		if tracker.Seen(key) {
			log.Info("🔁 [SKIP] envelope already routed")
			return
		}
		_, _, shared := tracker.inflight.Do(key, func() (any, error) {
			if tracker.Seen(key) {
				return nil, nil
			}
			next.Route(ctx, env)
			tracker.Store(key)
			return nil, nil
		})
		if shared {
			log.Debug("duplicate delivery joined in-flight routing")
		}
	})
}
