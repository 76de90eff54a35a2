// Package app assembles the dispatch pipeline and the background loops of
// the settlement service from its infrastructure dependencies.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/amirasaad/settlement/pkg/commands"
	"github.com/amirasaad/settlement/pkg/config"
	"github.com/amirasaad/settlement/pkg/dispatch"
	"github.com/amirasaad/settlement/pkg/hub"
	"github.com/amirasaad/settlement/pkg/ledger"
	"github.com/amirasaad/settlement/pkg/lock"
	"github.com/amirasaad/settlement/pkg/publisher"
	"github.com/amirasaad/settlement/pkg/rate"
	"github.com/amirasaad/settlement/pkg/repository"
	"github.com/amirasaad/settlement/pkg/settlement"
)

// Consumer pulls inbound envelopes from a broker transport.
type Consumer interface {
	Consume(ctx context.Context, handler hub.Handler) error
}

// Deps contains the infrastructure the application is built on.
type Deps struct {
	Uow       repository.UnitOfWork
	Locker    lock.Locker
	Settler   settlement.Settler
	Rates     rate.Provider
	HubClient hub.Client
	// Consumer is nil when envelopes arrive through the HTTP callback.
	Consumer Consumer
	Logger   *slog.Logger
}

type App struct {
	Deps   *Deps
	Config *config.App

	Ledger     *ledger.Service
	Tasks      *settlement.Tasks
	Publisher  *publisher.Publisher
	Worker     *settlement.Worker
	Reconciler *settlement.Reconciler
	Registry   *dispatch.Registry
	Router     *dispatch.Router
	// Handler is the entry point of every inbound envelope.
	Handler hub.Handler

	tracker *dispatch.IdempotencyTracker
}

func New(deps *Deps, cfg *config.App) *App {
	logger := deps.Logger
	a := &App{Deps: deps, Config: cfg}

	a.Ledger = ledger.New(deps.Uow, deps.Locker, logger)
	a.Tasks = settlement.NewTasks(logger)
	a.Publisher = publisher.New(deps.HubClient, cfg.Hub.Source, logger)
	a.Worker = settlement.NewWorker(a.Ledger, deps.Settler, a.Publisher, a.Tasks, settlement.Config{
		PollInterval: cfg.Settlement.PollInterval,
		Deadline:     cfg.Settlement.Deadline,
	}, logger)
	a.Reconciler = settlement.NewReconciler(a.Ledger, deps.Settler, settlement.ReconcilerConfig{
		Interval: cfg.Settlement.ReconcileInterval,
		After:    cfg.Settlement.Deadline,
		Grace:    cfg.Settlement.ReconcileGrace,
		Batch:    cfg.Settlement.ReconcileBatch,
	}, logger)

	a.Registry = dispatch.NewRegistry(logger, commands.All(commands.Deps{
		Ledger:      a.Ledger,
		Settlements: a.Worker,
		Tasks:       a.Tasks,
		Publisher:   a.Publisher,
		Rates:       deps.Rates,
		Addresses:   deps.Settler,
		Logger:      logger,
	})...)
	a.Router = dispatch.NewRouter(a.Registry, a.Publisher, logger)

	a.Handler = a.Router
	if cfg.Idempotency.Enabled {
		a.tracker = dispatch.NewIdempotencyTracker()
		a.Handler = dispatch.WithIdempotency(a.Router, a.tracker, dispatch.TopicCorrelationKey, logger)
	}
	return a
}

// Start launches the reconciler, the idempotency pruning and the broker
// consumer on the task group. They stop on Shutdown.
func (a *App) Start() {
	logger := a.Deps.Logger

	a.Tasks.Go("reconciler", a.Reconciler.Run)

	if a.tracker != nil {
		a.Tasks.Go("idempotency-prune", func(ctx context.Context) error {
			return a.prune(ctx, logger)
		})
	}

	if a.Deps.Consumer != nil {
		a.Tasks.Go("hub-consumer", func(ctx context.Context) error {
			return a.Deps.Consumer.Consume(ctx, a.Handler)
		})
	}
	logger.Info("🟢 settlement service started",
		"idempotency", a.tracker != nil,
		"consumer", a.Deps.Consumer != nil,
	)
}

func (a *App) prune(ctx context.Context, logger *slog.Logger) error {
	interval := a.Config.Idempotency.PruneInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := a.tracker.Prune(now.Add(-a.Config.Idempotency.TTL)); n > 0 {
				logger.Debug("pruned idempotency keys", "count", n)
			}
		}
	}
}

// Shutdown cancels in-flight settlements and loops and waits for them
// until ctx is done. Abandoned settlements stay PENDING for the
// reconciler of the next run.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Tasks.Shutdown(ctx)
}
