package hubclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/amirasaad/settlement/pkg/hub"
)

const (
	HeaderCorrelationID = "X-Correlation-Id"
	HeaderSource        = "X-Source"
	HeaderTarget        = "X-Target"
	HeaderStatus        = "X-Status"

	// DefaultPublishPath is appended to the Hub base URL.
	DefaultPublishPath = "/hub/publish"
)

// HTTPConfig configures the Hub REST publisher.
type HTTPConfig struct {
	BaseURL     string
	PublishPath string
	APIKey      string
	Timeout     time.Duration
}

// HTTP publishes envelopes to the Hub REST endpoint. Failures are returned
// to the caller and never retried.
type HTTP struct {
	url        string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

type publishBody struct {
	Topic string         `json:"topic"`
	Data  map[string]any `json:"data"`
}

// NewHTTP creates the REST publisher.
func NewHTTP(cfg HTTPConfig, logger *slog.Logger) (*HTTP, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("hub: base url is required")
	}
	path := cfg.PublishPath
	if path == "" {
		path = DefaultPublishPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTP{
		url:        base + path,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "hub-http"),
	}, nil
}

// Send implements hub.Client.
func (c *HTTP) Send(ctx context.Context, env hub.Envelope) error {
	body, err := json.Marshal(publishBody{Topic: env.Topic, Data: env.Data})
	if err != nil {
		return fmt.Errorf("%w: encode body: %w", ErrPublish, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create request: %w", ErrPublish, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderCorrelationID, env.CorrelationID)
	if env.Source != "" {
		req.Header.Set(HeaderSource, env.Source)
	}
	if env.Target != "" {
		req.Header.Set(HeaderTarget, env.Target)
	}
	if env.Status != "" {
		req.Header.Set(HeaderStatus, string(env.Status))
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%w: hub returned status %d: %s", ErrPublish, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	c.logger.Debug("envelope delivered", "topic", env.Topic, "status_code", resp.StatusCode)
	return nil
}
