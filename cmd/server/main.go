package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/amirasaad/settlement/infra/initializer"
	"github.com/amirasaad/settlement/pkg/app"
	"github.com/amirasaad/settlement/pkg/config"
	"github.com/amirasaad/settlement/webapi"
	log "github.com/charmbracelet/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx); err != nil {
		log.Fatal(err)
	}
}

// run serves until ctx is cancelled or the listener fails, then shuts
// everything down within Server.ShutdownTimeout.
func run(ctx context.Context) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}

	deps, cleanup, err := initializer.InitializeDependencies(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	logger := deps.Logger

	a := app.New(deps, cfg)
	a.Start()
	fiberApp := webapi.SetupApp(a)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listenErr := make(chan error, 1)
	go func() {
		logger.Info("🟢 starting server", "env", cfg.Env, "address", addr)
		listenErr <- fiberApp.Listen(addr)
	}()

	select {
	case err = <-listenErr:
		logger.Error("❌ server stopped", "error", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	errs := []error{err}
	if e := fiberApp.ShutdownWithContext(shutdownCtx); e != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", e))
	}
	if e := a.Shutdown(shutdownCtx); e != nil {
		errs = append(errs, fmt.Errorf("app shutdown: %w", e))
	}
	if e := cleanup(); e != nil {
		errs = append(errs, fmt.Errorf("cleanup: %w", e))
	}
	slog.Default().Info("✅ server stopped")
	return errors.Join(errs...)
}
