package webapi

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/amirasaad/settlement/infra/hubclient"
	"github.com/amirasaad/settlement/pkg/hub"
	"github.com/gofiber/fiber/v2"
)

type callbackBody struct {
	Topic         string         `json:"topic"`
	Data          map[string]any `json:"data"`
	CorrelationID string         `json:"correlationId"`
	Source        string         `json:"source"`
}

type callback struct {
	handler hub.Handler
	logger  *slog.Logger
}

// verify answers the Hub subscription handshake.
func (cb *callback) verify(c *fiber.Ctx) error {
	cb.logger.Info("🔁 subscription verified", "topic", c.Query("topic"))
	return c.Status(fiber.StatusOK).SendString(c.Query("challenge"))
}

// receive routes one delivered envelope. The Hub retries on anything but
// 2xx, so failures are answered with 200.
func (cb *callback) receive(c *fiber.Ctx) error {
	var body callbackBody
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		cb.logger.Error("❌ unreadable callback body", "error", err)
		return c.SendStatus(fiber.StatusOK)
	}

	env := hub.Envelope{
		Topic:         body.Topic,
		Data:          body.Data,
		CorrelationID: firstNonEmpty(c.Get(hubclient.HeaderCorrelationID), body.CorrelationID),
		Source:        firstNonEmpty(c.Get(hubclient.HeaderSource), body.Source),
	}
	if err := cb.route(c, env); err != nil {
		cb.logger.Error("❌ callback processing failed",
			"topic", env.Topic,
			"correlation_id", env.CorrelationID,
			"error", err,
		)
		return c.SendStatus(fiber.StatusOK)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (cb *callback) route(c *fiber.Ctx, env hub.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	cb.handler.Route(c.UserContext(), env)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
