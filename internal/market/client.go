// Package market provides the price feed client used by position monitors.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"trading-orchestrator/internal/platform/httpclient"
)

// PriceFeed fetches the current price for a symbol. Any error means the
// price is unavailable right now; callers skip the tick and retry later.
type PriceFeed interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// Client is an HTTP price feed client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *httpclient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a price feed client.
type ClientOptions struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RequestsPerSec int
}

// NewClient creates a new price feed client.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		httpClient: httpclient.New(httpclient.Options{
			Timeout:        opts.Timeout,
			RequestsPerSec: opts.RequestsPerSec,
		}),
		logger: logger.With().Str("component", "price_feed").Logger(),
	}
}

type priceResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// GetPrice fetches the current price for a symbol.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}
	endpoint := fmt.Sprintf("%s/api/v1/price?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("error building price request: %w", err)
	}

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("error fetching price for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("error reading price response: %w", err)
	}

	var pr priceResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return 0, fmt.Errorf("error parsing price response: %w", err)
	}

	price, err := strconv.ParseFloat(pr.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("price feed returned non-numeric price %q for %s", pr.Price, symbol)
	}
	if price <= 0 {
		return 0, fmt.Errorf("price feed returned non-positive price %.8f for %s", price, symbol)
	}

	c.logger.Debug().Str("symbol", symbol).Float64("price", price).Msg("Price fetched")
	return price, nil
}

var _ PriceFeed = (*Client)(nil)
var _ PriceFeed = (*MockClient)(nil)
