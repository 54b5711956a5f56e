package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/couchcryptid/lake-evaporation-etl/internal/observability"
)

const csrfHeader = "X-Csrf-Token"

// APIError is a non-2xx response from the portal.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("portal API error: status %d: %s", e.Status, e.Body)
}

// Retryable reports whether the request may succeed when repeated.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status == http.StatusUnauthorized || e.Status >= 500
}

// Options configures the portal client.
type Options struct {
	BaseURL    string
	Username   string
	Email      string
	Password   string
	Timeout    time.Duration
	MaxRetries int
	// DiscoveryTag is the metadata key that marks an evaporation target series.
	DiscoveryTag string
	// RetryInterval is the first backoff interval; zero means 500ms.
	RetryInterval time.Duration
}

// Client talks to the portal REST API. It implements the pipeline's
// location source, reading fetcher, raster point fetcher and result loader.
type Client struct {
	opts       Options
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics

	mu        sync.Mutex
	csrfToken string
	loggedIn  bool

	index *seriesIndex
}

// NewClient creates a portal client. Login happens lazily on the first request.
func NewClient(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if opts.DiscoveryTag == "" {
		opts.DiscoveryTag = "lakeEvaporation"
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	jar, _ := cookiejar.New(nil)
	return &Client{
		opts: opts,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Jar:     jar,
		},
		logger:  logger,
		metrics: metrics,
		index:   newSeriesIndex(),
	}
}

// Login authenticates and stores the CSRF token for later requests.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	body := map[string]string{"password": c.opts.Password}
	if c.opts.Username != "" {
		body["userName"] = c.opts.Username
	} else {
		body["email"] = c.opts.Email
	}

	resp, err := c.send(ctx, http.MethodPost, "/auth/login", nil, body, "", "login")
	if err != nil {
		return fmt.Errorf("portal login: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	c.csrfToken = resp.Header.Get(csrfHeader)
	c.loggedIn = true
	c.logger.Debug("portal login succeeded", "csrf", c.csrfToken != "")
	return nil
}

// Logout ends the session. It is a no-op when not logged in.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loggedIn {
		return nil
	}
	resp, err := c.send(ctx, http.MethodPost, "/auth/logout", nil, nil, c.csrfToken, "logout")
	c.loggedIn, c.csrfToken = false, ""
	if err != nil {
		return fmt.Errorf("portal logout: %w", err)
	}
	resp.Body.Close()
	return nil
}

// session returns the CSRF token, logging in first if needed.
func (c *Client) session(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loggedIn {
		if err := c.loginLocked(ctx); err != nil {
			return "", err
		}
	}
	return c.csrfToken, nil
}

func (c *Client) invalidate() {
	c.mu.Lock()
	c.loggedIn = false
	c.mu.Unlock()
}

// doJSON performs an authenticated request with retry and decodes the JSON
// response into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any, endpoint string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.RetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.opts.MaxRetries)), ctx)

	op := func() error {
		token, err := c.session(ctx)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			return classifyErr(ctx, err)
		}
		resp, err := c.send(ctx, method, path, query, body, token, endpoint)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
				c.invalidate()
			}
			return classifyErr(ctx, err)
		}
		defer resp.Body.Close()

		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return backoff.Permanent(fmt.Errorf("decode %s response: %w", endpoint, err))
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("portal request failed, retrying", "endpoint", endpoint, "error", err, "wait", wait)
	}
	return backoff.RetryNotify(op, policy, notify)
}

// send issues one request. Non-2xx responses are returned as *APIError.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any, token, endpoint string) (*http.Response, error) {
	u := c.opts.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(csrfHeader, token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return resp, nil
}

// classifyErr marks errors that retrying cannot fix as permanent.
func classifyErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return backoff.Permanent(err)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && !apiErr.Retryable() {
		return backoff.Permanent(err)
	}
	return err
}
