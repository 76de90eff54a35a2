package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/amirasaad/settlement/infra/hubclient"
	"github.com/amirasaad/settlement/pkg/config"
	"github.com/amirasaad/settlement/pkg/hub"
	"github.com/google/uuid"
)

// RunSmokeTest plays the Hub against a running service on the Kafka
// transport: it writes a wallet creation request to the service's inbound
// topic and waits for the correlated response on its outbound topic.
func RunSmokeTest(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	h := cfg.Hub

	// The Hub side swaps the service's topics.
	peer, err := hubclient.NewKafka(hubclient.KafkaConfig{
		Brokers:  hubclient.ParseBrokers(h.Brokers),
		Outbound: h.InboundTopic,
		Inbound:  h.OutboundTopic,
		GroupID:  "hub-smoketest-" + uuid.NewString(),
	}, logger)
	if err != nil {
		return err
	}
	defer peer.Close() //nolint:errcheck

	correlationID := uuid.NewString()
	replies := make(chan hub.Envelope, 1)
	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()
	consumed := make(chan error, 1)
	go func() {
		consumed <- peer.Consume(consumeCtx, hub.HandlerFunc(func(_ context.Context, env hub.Envelope) {
			if env.CorrelationID == correlationID {
				select {
				case replies <- env:
				default:
				}
			}
		}))
	}()

	req := hub.Envelope{
		Topic:         hub.KindWalletCreation.RequestTopic(),
		CorrelationID: correlationID,
		Source:        "hub-smoketest",
		Data: map[string]any{
			"name":  "Smoke Test",
			"email": fmt.Sprintf("smoke+%s@example.com", correlationID[:8]),
		},
	}
	if err := peer.Send(ctx, req); err != nil {
		return err
	}
	logger.Info("📤 request produced", "topic", req.Topic, "correlation_id", correlationID)

	select {
	case env := <-replies:
		stop()
		<-consumed
		if env.Status != hub.StatusSuccess {
			return fmt.Errorf("service answered %s: %v", env.Status, env.Data)
		}
		logger.Info("✅ hub smoke test passed", "topic", env.Topic, "target", env.Target)
		return nil
	case <-ctx.Done():
		return errors.New("no response before timeout")
	}
}

// main runs the smoke test and exits non-zero on failure.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := RunSmokeTest(ctx, logger); err != nil {
		logger.Error("❌ hub smoke test failed", "error", err)
		os.Exit(1)
	}
}
