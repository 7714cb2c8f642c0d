package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.sportradar.com/tennis/trial/v3/en"

// ErrRouteUnavailable is returned when the API answers 404 for an endpoint,
// which the trial tier does for routes it does not include.
var ErrRouteUnavailable = errors.New("route not available")

// StatusError is a non-200 API response.
type StatusError struct {
	Endpoint Endpoint
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sportradar %s status %d: %s", e.Endpoint, e.Code, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL         string
	APIKey          string
	FixtureDir      string
	Timeout         time.Duration
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Client fetches Sportradar endpoints with bounded retries and falls back
// to local fixtures for unavailable routes.
type Client struct {
	client *http.Client
	opts   Options
	logger *zap.Logger
}

// NewClient creates a Sportradar client.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		logger: logger,
	}
}

// Fetch decodes the endpoint's JSON body into out. Without an API key the
// fixture is used directly. A 404 switches to the fixture when one exists.
func (c *Client) Fetch(ctx context.Context, endpoint Endpoint, out any) error {
	if c.opts.APIKey == "" {
		c.logger.Warn("no api key configured, reading fixture", zap.String("endpoint", string(endpoint)))
		return c.readFixture(endpoint, out)
	}

	body, err := c.fetchWithRetry(ctx, endpoint)
	if errors.Is(err, ErrRouteUnavailable) {
		c.logger.Warn("api route not available, using fixture", zap.String("endpoint", string(endpoint)))
		if ferr := c.readFixture(endpoint, out); ferr != nil {
			return fmt.Errorf("%s: %w (fixture: %v)", endpoint, err, ferr)
		}
		return nil
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) fetchWithRetry(ctx context.Context, endpoint Endpoint) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.InitialInterval
	policy.MaxInterval = c.opts.MaxInterval
	policy.MaxElapsedTime = 0

	var body []byte
	attempt := 0
	op := func() error {
		attempt++
		var err error
		body, err = c.get(ctx, endpoint)
		if err == nil {
			return nil
		}

		var statusErr *StatusError
		switch {
		case errors.Is(err, ErrRouteUnavailable):
			return backoff.Permanent(err)
		case errors.As(err, &statusErr) && !retryableStatus(statusErr.Code):
			return backoff.Permanent(err)
		case ctx.Err() != nil:
			return backoff.Permanent(err)
		}
		c.logger.Warn("sportradar request failed",
			zap.String("endpoint", string(endpoint)),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, c.opts.MaxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return body, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func (c *Client) get(ctx context.Context, endpoint Endpoint) ([]byte, error) {
	reqURL := strings.TrimSuffix(c.opts.BaseURL, "/") + "/" + string(endpoint) +
		"?" + url.Values{"api_key": {c.opts.APIKey}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create sportradar request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tennisradar/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %s", endpoint, redactKey(err.Error(), c.opts.APIKey))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", endpoint, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrRouteUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: snippet(body, 200)}
	}
	return body, nil
}

func (c *Client) readFixture(endpoint Endpoint, out any) error {
	if c.opts.FixtureDir == "" {
		return fmt.Errorf("no fixture dir configured for %s", endpoint)
	}
	path := filepath.Join(c.opts.FixtureDir, endpoint.fixtureName())
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("fixture %s not found", path)
	}
	if err != nil {
		return fmt.Errorf("read fixture %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode fixture %s: %w", path, err)
	}
	return nil
}

// redactKey keeps the API key out of url.Error messages.
func redactKey(msg, key string) string {
	if key == "" {
		return msg
	}
	return strings.ReplaceAll(msg, key, "[REDACTED]")
}

func snippet(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
