package initializer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/amirasaad/settlement/infra"
	infracache "github.com/amirasaad/settlement/infra/cache"
	"github.com/amirasaad/settlement/infra/chain"
	"github.com/amirasaad/settlement/infra/hubclient"
	infralock "github.com/amirasaad/settlement/infra/lock"
	"github.com/amirasaad/settlement/infra/provider"
	infrarepository "github.com/amirasaad/settlement/infra/repository"
	"github.com/amirasaad/settlement/infra/repository/memory"
	"github.com/amirasaad/settlement/pkg/app"
	"github.com/amirasaad/settlement/pkg/config"
	"github.com/amirasaad/settlement/pkg/lock"
	"github.com/amirasaad/settlement/pkg/rate"
	"github.com/amirasaad/settlement/pkg/repository"
	"github.com/amirasaad/settlement/pkg/settlement"
	"github.com/redis/go-redis/v9"
)

// Cleanup releases the connections opened by InitializeDependencies.
type Cleanup func() error

// InitializeDependencies builds every infrastructure dependency selected
// by cfg. The returned cleanup must be called after the app has shut down.
func InitializeDependencies(ctx context.Context, cfg *config.App) (
	_ *app.Deps,
	_ Cleanup,
	err error,
) {
	logger := setupLogger(cfg.Log, os.Stdout)
	deps := &app.Deps{Logger: logger}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	defer func() {
		if err != nil {
			_ = closeAll()
		}
	}()

	var redisClient *redis.Client
	if cfg.UsesRedis() {
		redisClient, err = infralock.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, redisClient.Close)
		logger.Info("✅ redis connected")
	}

	if deps.Uow, err = newUnitOfWork(cfg, logger, &closers); err != nil {
		return nil, nil, err
	}

	switch cfg.Lock.Driver {
	case "redis":
		deps.Locker = infralock.NewRedisLocker(redisClient, cfg.Lock.Prefix, cfg.Lock.TTL, logger)
	default:
		deps.Locker = lock.NewKeyed()
	}

	if deps.Settler, err = newSettler(ctx, cfg.Chain, logger); err != nil {
		return nil, nil, err
	}

	if deps.Rates, err = newRates(cfg, redisClient, logger); err != nil {
		return nil, nil, err
	}

	if err = setupHub(cfg, redisClient, deps, logger, &closers); err != nil {
		return nil, nil, err
	}

	logger.Info("✅ dependencies initialized",
		"db_driver", cfg.DB.Driver,
		"lock_driver", cfg.Lock.Driver,
		"chain_driver", cfg.Chain.Driver,
		"hub_transport", cfg.Hub.Transport,
	)
	return deps, closeAll, nil
}

func newUnitOfWork(cfg *config.App, logger *slog.Logger, closers *[]func() error) (repository.UnitOfWork, error) {
	if cfg.DB.Driver != "postgres" {
		logger.Warn("using in-memory storage; data is lost on restart")
		return memory.NewUoW(), nil
	}

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	*closers = append(*closers, sqlDB.Close)

	if cfg.DB.Migrate {
		if err := infra.RunMigrations(db, logger); err != nil {
			return nil, err
		}
	}
	return infrarepository.NewUoW(db), nil
}

func newSettler(ctx context.Context, cfg *config.Chain, logger *slog.Logger) (settlement.Settler, error) {
	if cfg.Driver == "ethereum" {
		return chain.DialEthereum(ctx, cfg.RPCURL, chain.EthereumConfig{
			ChainID:      cfg.ChainID,
			Contract:     cfg.Contract,
			PrivateKey:   cfg.PrivateKey,
			PollInterval: cfg.PollInterval,
		}, logger)
	}
	logger.Warn("using simulated chain", "delay", cfg.SimulatedDelay, "mode", cfg.SimulatedMode)
	return chain.NewSimulated(cfg.SimulatedDelay, cfg.SimulatedMode)
}

func newRates(cfg *config.App, client *redis.Client, logger *slog.Logger) (rate.Provider, error) {
	s := cfg.Settlement
	if s.RateURL == "" {
		return rate.NewFixed(s.CryptoRate)
	}

	api := provider.NewPriceAPI(provider.PriceAPIConfig{
		URL:     s.RateURL,
		APIKey:  s.RateApiKey,
		Timeout: s.RateTimeout,
	}, logger)

	var store rate.Cache = rate.NewMemory()
	if s.RateCache == "redis" {
		store = infracache.NewRedisRateCache(client, cfg.Redis.KeyPrefix, logger)
	}
	return rate.NewCached(api, store, s.RateTTL, logger), nil
}

func setupHub(
	cfg *config.App,
	client *redis.Client,
	deps *app.Deps,
	logger *slog.Logger,
	closers *[]func() error,
) error {
	h := cfg.Hub
	switch h.Transport {
	case "http":
		c, err := hubclient.NewHTTP(hubclient.HTTPConfig{
			BaseURL:     h.URL,
			PublishPath: h.PublishPath,
			APIKey:      h.ApiKey,
			Timeout:     h.Timeout,
		}, logger)
		if err != nil {
			return err
		}
		deps.HubClient = c
	case "redis":
		rs, err := hubclient.NewRedisStream(client, hubclient.RedisConfig{
			Outbound: h.OutboundStream,
			Inbound:  h.InboundStream,
			Group:    h.Group,
		}, logger)
		if err != nil {
			return err
		}
		deps.HubClient = rs
		deps.Consumer = rs
	case "kafka":
		k, err := hubclient.NewKafka(hubclient.KafkaConfig{
			Brokers:  hubclient.ParseBrokers(h.Brokers),
			Outbound: h.OutboundTopic,
			Inbound:  h.InboundTopic,
			GroupID:  h.Group,
		}, logger)
		if err != nil {
			return err
		}
		*closers = append(*closers, k.Close)
		deps.HubClient = k
		deps.Consumer = k
	default:
		logger.Warn("hub transport is in-memory; published envelopes are only logged")
		deps.HubClient = hubclient.NewMemory(logger)
	}
	return nil
}
