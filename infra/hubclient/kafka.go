package hubclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/amirasaad/settlement/pkg/hub"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig names the topics exchanged with the Hub.
type KafkaConfig struct {
	Brokers []string
	// Outbound receives every published envelope keyed by correlation id.
	Outbound string
	Inbound  string
	GroupID  string
}

// Kafka carries JSON envelopes over Kafka topics.
type Kafka struct {
	cfg    KafkaConfig
	writer *kafka.Writer
	logger *slog.Logger
}

// ParseBrokers splits a comma separated broker list.
func ParseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// NewKafka creates the Kafka transport. No connection is made until the
// first write or read.
func NewKafka(cfg KafkaConfig, logger *slog.Logger) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("hub kafka: brokers are required")
	}
	if cfg.Outbound == "" || cfg.Inbound == "" {
		return nil, fmt.Errorf("hub kafka: outbound and inbound topics are required")
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "settlement"
	}
	return &Kafka{
		cfg: cfg,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Outbound,
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireOne,
			Balancer:               &kafka.Hash{},
		},
		logger: logger.With("component", "hub-kafka"),
	}, nil
}

// Send implements hub.Client.
func (k *Kafka) Send(ctx context.Context, env hub.Envelope) error {
	raw, err := encode(env)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	msg := kafka.Message{
		Key:   []byte(env.CorrelationID),
		Value: raw,
		Time:  time.Now(),
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%w: kafka write: %w", ErrPublish, err)
	}
	return nil
}

// Consume reads the inbound topic until ctx is done. Each message is
// routed on its own goroutine and committed once routed.
func (k *Kafka) Consume(ctx context.Context, handler hub.Handler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     k.cfg.Brokers,
		GroupID:     k.cfg.GroupID,
		Topic:       k.cfg.Inbound,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
	})
	defer reader.Close() //nolint:errcheck

	var wg sync.WaitGroup
	defer wg.Wait()

	k.logger.Info("🟢 consuming hub topic", "topic", k.cfg.Inbound, "group_id", k.cfg.GroupID)
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			k.logger.Error("❌ kafka consume error", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}

		wg.Add(1)
		go func(msg kafka.Message) {
			defer wg.Done()
			k.handle(ctx, handler, msg)
			commitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := reader.CommitMessages(commitCtx, msg); err != nil {
				k.logger.Error("kafka commit error", "error", err, "partition", msg.Partition, "offset", msg.Offset)
			}
		}(msg)
	}
}

func (k *Kafka) handle(ctx context.Context, handler hub.Handler, msg kafka.Message) {
	env, err := decode(msg.Value)
	if err != nil {
		k.logger.Error("failed to decode envelope", "error", err, "partition", msg.Partition, "offset", msg.Offset)
		return
	}
	handler.Route(ctx, env)
}

// Close flushes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
