//go:build integration

package hubclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/amirasaad/settlement/pkg/hub"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(tb testing.TB) *redis.Client {
	tb.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7.0.5",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(tb, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(tb, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	require.NoError(tb, client.Ping(ctx).Err())
	tb.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStreamRoundTrip(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	cfg := RedisConfig{Outbound: "hub.out", Inbound: "hub.in", Group: "settlement", Block: 100 * time.Millisecond}
	rs, err := NewRedisStream(client, cfg, discard())
	require.NoError(t, err)

	t.Run("send appends envelope", func(t *testing.T) {
		require.NoError(t, rs.Send(ctx, hub.Envelope{Topic: "fiat.deposit.response", CorrelationID: "c1"}))
		msgs, err := client.XRange(ctx, "hub.out", "-", "+").Result()
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		env, err := decode([]byte(msgs[0].Values[envelopeField].(string)))
		require.NoError(t, err)
		assert.Equal(t, "c1", env.CorrelationID)
	})

	t.Run("consume routes and acknowledges", func(t *testing.T) {
		require.NoError(t, client.XGroupCreateMkStream(ctx, "hub.in", "settlement", "0").Err())
		raw, err := encode(hub.Envelope{Topic: "wallet.balances.request", CorrelationID: "c2", Source: "app"})
		require.NoError(t, err)
		require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: "hub.in", Values: map[string]any{envelopeField: string(raw)}}).Err())
		require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: "hub.in", Values: map[string]any{"junk": "1"}}).Err())

		var (
			mu  sync.Mutex
			got []hub.Envelope
		)
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			done <- rs.Consume(runCtx, hub.HandlerFunc(func(_ context.Context, env hub.Envelope) {
				mu.Lock()
				got = append(got, env)
				mu.Unlock()
			}))
		}()

		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(got) == 1
		}, 5*time.Second, 20*time.Millisecond)
		cancel()
		require.NoError(t, <-done)

		assert.Equal(t, "c2", got[0].CorrelationID)
		pending, err := client.XPending(ctx, "hub.in", "settlement").Result()
		require.NoError(t, err)
		assert.Zero(t, pending.Count)
		dlq, err := client.XLen(ctx, "hub.in-DLQ").Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), dlq)
	})
}
