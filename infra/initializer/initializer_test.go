package initializer

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/amirasaad/settlement/infra/chain"
	"github.com/amirasaad/settlement/infra/hubclient"
	"github.com/amirasaad/settlement/infra/repository/memory"
	"github.com/amirasaad/settlement/pkg/config"
	"github.com/amirasaad/settlement/pkg/lock"
	"github.com/amirasaad/settlement/pkg/rate"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() *config.App {
	return &config.App{
		Env:        "test",
		Log:        &config.Log{Format: "json", Prefix: "[test]"},
		DB:         &config.DB{Driver: "memory"},
		Redis:      &config.Redis{},
		Hub:        &config.Hub{Transport: "memory", Source: "settlement-service", Timeout: time.Second},
		Settlement: &config.Settlement{CryptoRate: decimal.NewFromInt(3), RateCache: "memory", RateTTL: time.Minute},
		Chain:      &config.Chain{Driver: "simulated", SimulatedMode: "success"},
		Lock:       &config.Lock{Driver: "memory"},
	}
}

func TestInitializeInMemory(t *testing.T) {
	deps, cleanup, err := InitializeDependencies(context.Background(), defaultConfig())
	require.NoError(t, err)
	defer cleanup() //nolint:errcheck

	assert.IsType(t, &memory.UoW{}, deps.Uow)
	assert.IsType(t, &lock.Keyed{}, deps.Locker)
	assert.IsType(t, &chain.Simulated{}, deps.Settler)
	assert.IsType(t, &hubclient.Memory{}, deps.HubClient)
	assert.Nil(t, deps.Consumer)

	r, err := deps.Rates.Rate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3", r.String())
}

func TestInitializeRateAPI(t *testing.T) {
	cfg := defaultConfig()
	cfg.Settlement.RateURL = "http://127.0.0.1:1/price"
	deps, cleanup, err := InitializeDependencies(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup() //nolint:errcheck
	assert.IsType(t, &rate.Cached{}, deps.Rates)
}

func TestInitializeRejectsBadSimulatedMode(t *testing.T) {
	cfg := defaultConfig()
	cfg.Chain.SimulatedMode = "sideways"
	_, _, err := InitializeDependencies(context.Background(), cfg)
	assert.Error(t, err)
}

func TestSetupLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	defer slog.SetDefault(prev)

	logger := setupLogger(&config.Log{Format: "json", Prefix: "[test]"}, &buf)
	logger.Info("hello", "component", "test")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"component":"test"`)
}
