// Package fleet provides a client for the fleet service's truck endpoint,
// used to resolve truck ids into registration numbers.
package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"fleetfinance/internal/cache"
	"fleetfinance/internal/core"
	"fleetfinance/internal/log"
)

const (
	DefaultBaseURL   = "http://localhost:3002"
	DefaultTimeout   = 3 * time.Second
	DefaultRateLimit = 20 // requests per second
)

// Client resolves registration numbers over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
	limiter    *rate.Limiter
	cache      cache.Cache[string]
}

// ClientOption configures the client
type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger.WithComponent(log.ComponentFleet)
		}
	}
}

// WithRateLimit caps outgoing requests per second
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithCache keeps resolved registrations; failures are never cached
func WithCache(c cache.Cache[string]) ClientOption {
	return func(cl *Client) {
		cl.cache = c
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  log.Discard(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a non-200 answer from the fleet service
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fleet API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

type truckResponse struct {
	RegistrationNo string `json:"registrationNo"`
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.DebugContext(ctx, "Fleet API request", log.FieldPath, path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Registration returns the registration number of a truck. A truck without
// one resolves to the placeholder.
func (c *Client) Registration(ctx context.Context, truckID string) (string, error) {
	if c.cache != nil {
		if reg, ok := c.cache.Get(truckID); ok {
			return reg, nil
		}
	}

	var resp truckResponse
	if err := c.get(ctx, "/api/trucks/"+url.PathEscape(truckID), &resp); err != nil {
		return "", err
	}

	reg := strings.TrimSpace(resp.RegistrationNo)
	if reg == "" {
		reg = core.RegistrationPlaceholder
	}
	if c.cache != nil {
		c.cache.Set(truckID, reg)
	}
	return reg, nil
}
