// Package gateway talks to the marketplace integration gateway over HTTP.
// Each operation is a JSON POST to {base_url}/{operation}.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vietddude/arbiter/internal/infra/storage"
	"github.com/vietddude/arbiter/internal/market"
)

// Config holds gateway connection settings.
type Config struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
}

// FeeCalculator splits order revenue into marketplace and payment fees.
type FeeCalculator interface {
	Fees(revenue float64) (marketplace, payment float64)
}

// Client implements market.ProductFinder, market.Lister and market.Fulfiller.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	repos      storage.Repositories
	fees       FeeCalculator
	log        *slog.Logger

	mu    sync.RWMutex
	token string
}

var (
	_ market.ProductFinder = (*Client)(nil)
	_ market.Lister        = (*Client)(nil)
	_ market.Fulfiller     = (*Client)(nil)
)

// NewClient creates a gateway client.
func NewClient(cfg Config, repos storage.Repositories, fees FeeCalculator) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(limit, 1),
		repos:   repos,
		fees:    fees,
		log:     slog.Default().With("component", "gateway"),
	}
}

// call POSTs req to the operation endpoint and decodes the response into resp.
func (c *Client) call(ctx context.Context, operation string, req, resp any) error {
	if c.cfg.BaseURL == "" {
		return market.ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limiter: %w", operation, err)
	}

	if req == nil {
		req = struct{}{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", operation, err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.cfg.BaseURL+"/"+operation,
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", operation, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("X-API-Key", c.cfg.APIKey)
	}
	if token := c.session(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: connection failed: %w", operation, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", operation, err)
	}

	// The status text goes into the message so failures classify by pattern.
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return fmt.Errorf("%s: %d %s: %s",
			operation,
			httpResp.StatusCode,
			strings.ToLower(http.StatusText(httpResp.StatusCode)),
			strings.TrimSpace(string(data)),
		)
	}

	c.log.Debug("Gateway call", "operation", operation, "latency", time.Since(start))

	if resp == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, resp); err != nil {
		return fmt.Errorf("%s: invalid response: %w", operation, err)
	}
	return nil
}

func (c *Client) session() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login opens a session with the source marketplace.
func (c *Client) Login(ctx context.Context, creds market.Credentials) (bool, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.call(ctx, "login", map[string]string{
		"email":    creds.Email,
		"password": creds.Password,
	}, &resp)
	if err != nil {
		return false, err
	}
	if resp.Token == "" {
		return false, nil
	}

	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	return true, nil
}

// Close ends the session and releases idle connections.
func (c *Client) Close() error {
	defer c.httpClient.CloseIdleConnections()

	if c.session() == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()

	err := c.call(ctx, "logout", nil, nil)

	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to close gateway session: %w", err)
	}
	return nil
}
