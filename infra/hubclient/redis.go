package hubclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/amirasaad/settlement/pkg/hub"
	"github.com/redis/go-redis/v9"
)

const envelopeField = "envelope"

// RedisConfig names the streams exchanged with the Hub.
type RedisConfig struct {
	// Outbound receives every published envelope.
	Outbound string
	// Inbound is consumed through Group.
	Inbound  string
	Group    string
	Consumer string
	Block    time.Duration
	Count    int64
}

// RedisStream carries JSON envelopes over Redis Streams.
type RedisStream struct {
	client redis.UniversalClient
	cfg    RedisConfig
	logger *slog.Logger
}

// NewRedisStream binds the streams of cfg on client.
func NewRedisStream(client redis.UniversalClient, cfg RedisConfig, logger *slog.Logger) (*RedisStream, error) {
	if cfg.Outbound == "" || cfg.Inbound == "" || cfg.Group == "" {
		return nil, fmt.Errorf("hub redis: outbound, inbound and group are required")
	}
	if cfg.Consumer == "" {
		host, _ := os.Hostname()
		cfg.Consumer = fmt.Sprintf("settlement-%s-%d", host, time.Now().UnixNano())
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.Count <= 0 {
		cfg.Count = 10
	}
	return &RedisStream{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "hub-redis", "consumer", cfg.Consumer),
	}, nil
}

// Send implements hub.Client.
func (r *RedisStream) Send(ctx context.Context, env hub.Envelope) error {
	raw, err := encode(env)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	if err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.cfg.Outbound,
		Values: map[string]any{envelopeField: string(raw)},
	}).Err(); err != nil {
		return fmt.Errorf("%w: xadd %s: %w", ErrPublish, r.cfg.Outbound, err)
	}
	return nil
}

// Consume reads the inbound stream until ctx is done. Every message is
// routed on its own goroutine and acknowledged once routed. Consume waits
// for in-flight messages before returning.
func (r *RedisStream) Consume(ctx context.Context, handler hub.Handler) error {
	if err := r.client.XGroupCreateMkStream(ctx, r.cfg.Inbound, r.cfg.Group, "$").Err(); err != nil &&
		!strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("hub redis: create group: %w", err)
	}
	r.logger.Info("🟢 consuming hub stream", "stream", r.cfg.Inbound, "group", r.cfg.Group)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		res, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    r.cfg.Group,
			Consumer: r.cfg.Consumer,
			Streams:  []string{r.cfg.Inbound, ">"},
			Count:    r.cfg.Count,
			Block:    r.cfg.Block,
		}).Result()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				r.logger.Error("❌ error reading from stream", "error", err)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(time.Second):
				}
			}
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				wg.Add(1)
				go func(msg redis.XMessage) {
					defer wg.Done()
					r.handle(ctx, handler, msg)
				}(msg)
			}
		}
	}
}

func (r *RedisStream) handle(ctx context.Context, handler hub.Handler, msg redis.XMessage) {
	defer r.ack(msg.ID)

	raw, ok := msg.Values[envelopeField].(string)
	if !ok {
		r.logger.Error("message without envelope field", "msg_id", msg.ID)
		r.pushToDLQ(ctx, msg.Values)
		return
	}
	env, err := decode([]byte(raw))
	if err != nil {
		r.logger.Error("failed to decode envelope", "msg_id", msg.ID, "error", err)
		r.pushToDLQ(ctx, msg.Values)
		return
	}
	handler.Route(ctx, env)
}

// ack uses its own context so messages routed during shutdown are still
// acknowledged.
func (r *RedisStream) ack(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.XAck(ctx, r.cfg.Inbound, r.cfg.Group, id).Err(); err != nil {
		r.logger.Error("failed to acknowledge message", "msg_id", id, "error", err)
	}
}

func (r *RedisStream) pushToDLQ(ctx context.Context, values map[string]any) {
	dlq := r.cfg.Inbound + "-DLQ"
	if err := r.client.XAdd(ctx, &redis.XAddArgs{Stream: dlq, Values: values}).Err(); err != nil {
		r.logger.Error("failed to push to DLQ", "stream", dlq, "error", err)
		return
	}
	r.logger.Warn("message pushed to DLQ", "stream", dlq)
}
