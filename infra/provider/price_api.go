// Package provider fetches the crypto conversion rate from a price API.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/amirasaad/settlement/pkg/rate"
	"github.com/shopspring/decimal"
)

// PriceAPIConfig configures the price endpoint.
type PriceAPIConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// PriceAPI implements rate.Provider over an HTTP endpoint answering
// {"price": <decimal>}.
type PriceAPI struct {
	url        string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

type priceResponse struct {
	Price *decimal.Decimal `json:"price"`
}

// NewPriceAPI creates the provider.
func NewPriceAPI(cfg PriceAPIConfig, logger *slog.Logger) *PriceAPI {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PriceAPI{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "price-api"),
	}
}

// Rate implements rate.Provider.
func (p *PriceAPI) Rate(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return decimal.Decimal{}, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var out priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Price == nil {
		return decimal.Decimal{}, fmt.Errorf("response carries no price")
	}
	if !out.Price.IsPositive() {
		return decimal.Decimal{}, rate.ErrInvalidRate
	}
	p.logger.Debug("rate fetched", "rate", out.Price.String())
	return *out.Price, nil
}
