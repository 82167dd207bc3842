// Package rates fetches currency exchange rates from exchangerate-api.com style services.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/susu3304/finbot/internal/common"
)

const (
	DefaultBaseURL = "https://v6.exchangerate-api.com/v6"
	DefaultTimeout = 10 * time.Second

	serviceName = "exchange rates"
)

// Rates maps a currency code to the amount of that currency one base unit buys.
type Rates map[string]decimal.Decimal

// Fetcher returns the latest rates for a base currency.
// Any failure satisfies errors.Is(err, common.ErrUpstreamUnavailable).
type Fetcher interface {
	Fetch(ctx context.Context, base string) (Rates, error)
}

type latestResponse struct {
	Result          string `json:"result"`
	ErrorType       string `json:"error-type"`
	BaseCode        string `json:"base_code"`
	ConversionRates Rates  `json:"conversion_rates"`
}

// Client talks to the quote endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timeout    time.Duration
}

var _ Fetcher = (*Client)(nil)

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	return c
}

// Fetch performs GET {baseURL}/{apiKey}/latest/{base} bounded by the client timeout.
func (c *Client) Fetch(ctx context.Context, base string) (Rates, error) {
	if c.apiKey == "" {
		return nil, common.NewUpstreamError(serviceName, errors.New("no API key configured"))
	}
	base = strings.ToUpper(strings.TrimSpace(base))
	if base == "" {
		return nil, common.NewUpstreamError(serviceName, errors.New("empty base currency"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	addr := fmt.Sprintf("%s/%s/latest/%s", c.baseURL, url.PathEscape(c.apiKey), url.PathEscape(base))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, common.NewUpstreamError(serviceName, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The URL embeds the API key; keep it out of the error.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, common.NewUpstreamError(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, common.NewUpstreamError(serviceName, fmt.Errorf("HTTP status %s", resp.Status))
	}

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, common.NewUpstreamError(serviceName, fmt.Errorf("decode response: %w", err))
	}
	if body.Result != "success" {
		errType := body.ErrorType
		if errType == "" {
			errType = "unknown"
		}
		return nil, common.NewUpstreamError(serviceName, fmt.Errorf("result %q: %s", body.Result, errType))
	}
	if len(body.ConversionRates) == 0 {
		return nil, common.NewUpstreamError(serviceName, errors.New("response has no conversion rates"))
	}

	return body.ConversionRates, nil
}

// RequestCache memoises successful fetches for the lifetime of one logical request.
// Create one per inbound event and drop it afterwards.
type RequestCache struct {
	fetcher Fetcher

	mu    sync.Mutex
	rates map[string]Rates
}

func NewRequestCache(f Fetcher) *RequestCache {
	return &RequestCache{fetcher: f, rates: make(map[string]Rates)}
}

func (c *RequestCache) Fetch(ctx context.Context, base string) (Rates, error) {
	key := strings.ToUpper(strings.TrimSpace(base))

	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.rates[key]; ok {
		return r, nil
	}
	r, err := c.fetcher.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	c.rates[key] = r
	return r, nil
}
