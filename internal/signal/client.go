package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"trading-orchestrator/internal/platform/httpclient"
)

// Client is the HTTP client for the external signal engine.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *httpclient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a signal client.
type ClientOptions struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RequestsPerSec int
}

// NewClient creates a new signal engine client.
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
		logger: logger.With().Str("component", "signal_client").Logger(),
	}
}

// GetSignal fetches the current signal for a symbol/timeframe.
// Any failure is returned to the caller, which treats it as "no signal".
func (c *Client) GetSignal(ctx context.Context, symbol, timeframe string) (*Signal, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("timeframe", timeframe)
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}
	endpoint := fmt.Sprintf("%s/api/v1/signal?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error building signal request: %w", err)
	}

	c.logger.Debug().Str("symbol", symbol).Str("timeframe", timeframe).Msg("Requesting signal")

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("error fetching signal for %s %s: %w", symbol, timeframe, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading signal response: %w", err)
	}

	var sig Signal
	if err := json.Unmarshal(body, &sig); err != nil {
		return nil, fmt.Errorf("error parsing signal response: %w", err)
	}

	if sig.Symbol == "" {
		sig.Symbol = symbol
	}
	if sig.Timeframe == "" {
		sig.Timeframe = timeframe
	}
	if sig.Timestamp.IsZero() {
		sig.Timestamp = time.Now()
	}

	switch sig.Type {
	case TypeBuy, TypeSell, TypeNeutral:
	default:
		return nil, fmt.Errorf("signal engine returned unknown signal type %q", sig.Type)
	}

	return &sig, nil
}

var _ Provider = (*Client)(nil)
var _ Provider = (*MockClient)(nil)
