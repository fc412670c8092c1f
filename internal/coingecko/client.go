package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"coinpulse/internal/models"
)

const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// Common errors
var (
	ErrRateLimited = errors.New("rate limited by coingecko")
	ErrMalformed   = errors.New("malformed coingecko response")
)

// StatusError wraps a non-success HTTP status with the endpoint that returned it
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("endpoint=%s status=%d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("endpoint=%s status=%d: %s", e.Endpoint, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient() *Client {
	return NewClientWithURL(DefaultBaseURL, 10*time.Second)
}

// NewClientWithURL creates a client against a custom base URL, e.g. the pro
// API or a test server.
func NewClientWithURL(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: SharedHTTPClient(timeout),
		baseURL:    baseURL,
	}
}

// SharedHTTPClient returns an HTTP client with pooled connections
func SharedHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// DefaultUserAgent returns a user agent string for outbound requests
func DefaultUserAgent() string {
	return "coinpulse/1.0"
}

// FetchCoinData returns the market snapshot for one coin.
func (c *Client) FetchCoinData(ctx context.Context, coinID string) (*models.CoinGeckoResponse, error) {
	q := url.Values{}
	q.Set("localization", "false")
	q.Set("tickers", "false")
	q.Set("community_data", "false")
	q.Set("developer_data", "false")
	q.Set("sparkline", "false")
	endpoint := fmt.Sprintf("%s/coins/%s?%s", c.baseURL, url.PathEscape(coinID), q.Encode())

	var geckoResp models.CoinGeckoResponse
	if err := c.getJSON(ctx, endpoint, &geckoResp); err != nil {
		return nil, fmt.Errorf("failed to fetch coin data: %w", err)
	}

	if geckoResp.Name == "" || geckoResp.Symbol == "" {
		return nil, fmt.Errorf("coin %s: %w: missing name or symbol", coinID, ErrMalformed)
	}
	if geckoResp.MarketData.Price.USD <= 0 {
		return nil, fmt.Errorf("coin %s: %w: missing or non-positive price", coinID, ErrMalformed)
	}

	return &geckoResp, nil
}

// FetchGlobal returns global market totals, including dominance percentages.
func (c *Client) FetchGlobal(ctx context.Context) (*models.GlobalResponse, error) {
	var global models.GlobalResponse
	if err := c.getJSON(ctx, c.baseURL+"/global", &global); err != nil {
		return nil, fmt.Errorf("failed to fetch global data: %w", err)
	}
	if global.Data.MarketCapPercentage == nil {
		return nil, fmt.Errorf("global: %w: missing market_cap_percentage", ErrMalformed)
	}
	return &global, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", DefaultUserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: ErrRateLimited}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
