// Package api is the typed gateway to the pgai service HTTP API.
//
// Every operation takes a context and returns *Error on failure. Transport
// policy lives here so callers never retry on their own:
//
//   - a token-bucket limiter spaces requests (golang.org/x/time/rate)
//   - idempotent GETs are retried with exponential backoff (retry-go)
//   - a circuit breaker fails fast after repeated transport/5xx failures
//   - every request carries an X-Request-ID for correlating service logs
//
// POSTs are never retried: collect and install-agent are not idempotent.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/google/uuid"
	"github.com/rileyhilliard/pgai/internal/logger"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is where the service listens in the stock compose setup.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout bounds a single HTTP exchange. Collection runs can take minutes.
	DefaultTimeout = 5 * time.Minute

	// DefaultRetries is the number of attempts for idempotent requests.
	DefaultRetries = 2

	// DefaultRateLimit is requests per second across the client.
	DefaultRateLimit = 10.0

	// DefaultBurst is the limiter bucket size.
	DefaultBurst = 5

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 * 1024
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Client talks to the pgai service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	retries    uint
	log        logger.Logger
	userAgent  string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the service root, e.g. http://10.0.0.2:8000.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-exchange timeout on the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRetries sets the attempt count for GET requests. Values below 1 mean 1.
func WithRetries(n int) ClientOption {
	return func(c *Client) {
		if n < 1 {
			n = 1
		}
		c.retries = uint(n)
	}
}

// WithRateLimit sets requests per second and burst. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a gateway client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultBurst),
		retries:    DefaultRetries,
		log:        logger.Noop(),
		userAgent:  "pgai-cli",
	}

	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "pgai-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return c
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path
}

// do performs one logical call. GETs go through retry; everything goes through
// the limiter and breaker. out may be nil to discard the body.
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Kind: KindDecode, Err: fmt.Errorf("encode request: %w", err)}
		}
	}

	attempts := uint(1)
	if method == http.MethodGet {
		attempts = c.retries
	}

	var last error
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
			return retry.BackOffDelay(n, err, config)
		}),
	)
	retryErr := r.Do(func() error {
		last = c.guarded(ctx, op, func() error {
			return c.exchange(ctx, op, method, path, payload, out)
		})
		if last != nil && retryable(last) {
			c.log.Debug("%s %s failed, may retry: %v", method, path, last)
			return last
		}
		return nil
	})

	if last != nil {
		return last
	}
	if retryErr != nil {
		return &Error{Op: op, Kind: KindTransport, Err: retryErr}
	}
	return nil
}

// guarded runs fn behind the rate limiter and circuit breaker. Errors that do
// not trip the breaker are passed through without counting as failures.
func (c *Client) guarded(ctx context.Context, op string, fn func() error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &Error{Op: op, Kind: KindTransport, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	var passthrough error
	_, err := c.breaker.Execute(func() (interface{}, error) {
		callErr := fn()
		if callErr != nil && !tripsBreaker(callErr) {
			passthrough = callErr
			return nil, nil
		}
		return nil, callErr
	})

	if passthrough != nil {
		return passthrough
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &Error{Op: op, Kind: KindTransport, Err: fmt.Errorf("%w: %v", ErrCircuitOpen, err)}
	}
	return err
}

// exchange performs a single HTTP round trip and decodes the response.
func (c *Client) exchange(ctx context.Context, op, method, path string, payload []byte, out interface{}) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return &Error{Op: op, Kind: KindTransport, Err: err}
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("%s %s id=%s failed after %s: %v", method, path, reqID, time.Since(start), err)
		return &Error{Op: op, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug("%s %s id=%s -> %d (%s)", method, path, reqID, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode >= 400 {
		return c.statusError(op, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: op, Kind: KindTransport, Err: fmt.Errorf("read response: %w", err)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Op: op, Kind: KindDecode, StatusCode: 0, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	kind := KindServer
	if resp.StatusCode < 500 {
		kind = KindValidation
	}
	return &Error{
		Op:         op,
		Kind:       kind,
		StatusCode: resp.StatusCode,
		Detail:     parseDetail(body),
	}
}

func escape(id string) string {
	return url.PathEscape(id)
}
