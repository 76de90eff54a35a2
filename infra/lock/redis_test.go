//go:build integration

package lock

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

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

	client, err := NewRedisClient(ctx, "redis://"+host+":"+port.Port())
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLockerExclusive(t *testing.T) {
	client := setupRedis(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := NewRedisLocker(client, "test:", time.Second, logger)

	unlock, err := l.Lock(context.Background(), "owner-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "owner-1")
	assert.ErrorIs(t, err, ErrNotAcquired)

	unlock()
	again, err := l.Lock(context.Background(), "owner-1")
	require.NoError(t, err)
	again()
}

func TestRedisLockerExpires(t *testing.T) {
	client := setupRedis(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := NewRedisLocker(client, "test:", 200*time.Millisecond, logger)

	_, err := l.Lock(context.Background(), "owner-2")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	unlock, err := l.Lock(ctx, "owner-2")
	require.NoError(t, err)
	unlock()
}
