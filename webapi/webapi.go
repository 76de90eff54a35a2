// Package webapi exposes the Hub callback endpoint through which envelopes
// reach the dispatch pipeline, plus a health probe.
package webapi

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/amirasaad/settlement/pkg/app"
	"github.com/amirasaad/settlement/pkg/config"
	"github.com/amirasaad/settlement/pkg/hub"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const CallbackPath = "/hub/callback"

// SetupApp builds the fiber app serving a.
func SetupApp(a *app.App) *fiber.App {
	return NewApp(a.Handler, a.Config, a.Deps.Logger)
}

// NewApp builds the fiber app routing callbacks to handler.
func NewApp(handler hub.Handler, cfg *config.App, logger *slog.Logger) *fiber.App {
	if logger == nil {
		logger = slog.Default()
	}
	fiberApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})

	if cfg.RateLimit != nil && cfg.RateLimit.MaxRequests > 0 {
		fiberApp.Use(limiter.New(limiter.Config{
			Max:          cfg.RateLimit.MaxRequests,
			Expiration:   cfg.RateLimit.Window,
			KeyGenerator: clientIP,
			LimitReached: func(c *fiber.Ctx) error {
				return ProblemDetailsJSON(
					c,
					"Too Many Requests",
					errors.New("rate limit exceeded"),
					fiber.StatusTooManyRequests,
				)
			},
		}))
	}
	fiberApp.Use(recover.New())
	if cfg.Env != "test" {
		fiberApp.Use(fiberlogger.New())
	}

	fiberApp.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	cb := &callback{handler: handler, logger: logger.With("component", "webapi")}
	fiberApp.Get(CallbackPath, cb.verify)
	fiberApp.Post(CallbackPath, cb.receive)

	return fiberApp
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP.
func clientIP(c *fiber.Ctx) string {
	if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
		if i := strings.Index(forwardedFor, ","); i != -1 {
			return strings.TrimSpace(forwardedFor[:i])
		}
		return strings.TrimSpace(forwardedFor)
	}
	if realIP := c.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return c.IP()
}
