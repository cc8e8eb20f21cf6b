// Package httpclient provides the HTTP client used to call upstream JSON APIs.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/pagepulse/comment-sync/internal/versions"
)

const (
	// DefaultTimeout is the default timeout for a whole HTTP request
	DefaultTimeout = 30 * time.Second

	// DefaultConnectTimeout is the default timeout for establishing a connection
	DefaultConnectTimeout = 15 * time.Second

	// DefaultMaxRetries is the default number of attempts for retryable responses
	DefaultMaxRetries = 3

	// MaxResponseSize is the maximum allowed response size (10MB)
	MaxResponseSize = 10 * 1024 * 1024

	// maxErrorBodySize bounds how much of an error response is kept in HTTPError
	maxErrorBodySize = 512
)

// Client is an interface for HTTP operations
//
//go:generate mockgen -destination=mocks/mock_client.go -package=mocks github.com/pagepulse/comment-sync/internal/httpclient Client
type Client interface {
	// Get performs an HTTP GET request and returns the response body
	Get(ctx context.Context, url string) ([]byte, error)
}

// Option configures a DefaultClient
type Option func(*DefaultClient)

// WithTimeout sets the overall request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *DefaultClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithConnectTimeout sets the dial timeout
func WithConnectTimeout(d time.Duration) Option {
	return func(c *DefaultClient) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}

// WithMaxRetries sets how many attempts are made for 429 and 5xx responses
func WithMaxRetries(n int) Option {
	return func(c *DefaultClient) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithInitialBackoff sets the first retry delay
func WithInitialBackoff(d time.Duration) Option {
	return func(c *DefaultClient) {
		if d > 0 {
			c.initialBackoff = d
		}
	}
}

// DefaultClient is the default HTTP client implementation
type DefaultClient struct {
	client         *http.Client
	timeout        time.Duration
	connectTimeout time.Duration
	maxRetries     int
	initialBackoff time.Duration
}

// NewDefaultClient creates a new HTTP client. Without options it uses a 30s request
// timeout, a 15s connect timeout and three attempts for retryable responses.
func NewDefaultClient(opts ...Option) *DefaultClient {
	c := &DefaultClient{
		timeout:        DefaultTimeout,
		connectTimeout: DefaultConnectTimeout,
		maxRetries:     DefaultMaxRetries,
		initialBackoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   c.connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext

	c.client = &http.Client{
		Timeout:   c.timeout,
		Transport: transport,
	}
	return c
}

// Get performs an HTTP GET request, retrying 429 and 5xx responses with exponential backoff
func (c *DefaultClient) Get(ctx context.Context, url string) ([]byte, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.initialBackoff

	attempt := 0
	operation := func() ([]byte, error) {
		attempt++
		body, err := c.get(ctx, url)
		if err == nil {
			return body, nil
		}

		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.Retryable() {
			slog.DebugContext(ctx, "Retrying upstream request",
				"status", httpErr.StatusCode,
				"attempt", attempt,
				"url", httpErr.URL,
			)
			return nil, err
		}
		var retryAfter *backoff.RetryAfterError
		if errors.As(err, &retryAfter) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(uint(c.maxRetries)),
	)
	if err != nil {
		var retryAfter *backoff.RetryAfterError
		if errors.As(err, &retryAfter) {
			return nil, NewHTTPError(http.StatusTooManyRequests, url, "rate limited")
		}
		return nil, err
	}
	return body, nil
}

func (c *DefaultClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", versions.UserAgent())
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		var urlErr interface{ Unwrap() error }
		if errors.As(err, &urlErr) {
			err = urlErr.Unwrap()
		}
		return nil, fmt.Errorf("failed to execute request to %s: %w", RedactURL(url), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		if seconds, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && seconds > 0 {
			return nil, backoff.RetryAfter(seconds)
		}
	}

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		message := resp.Status
		if len(snippet) > 0 {
			message = fmt.Sprintf("%s: %s", resp.Status, snippet)
		}
		return nil, NewHTTPError(resp.StatusCode, url, message)
	}

	if resp.ContentLength > MaxResponseSize {
		return nil, fmt.Errorf("response size %d bytes exceeds maximum allowed size of %d bytes",
			resp.ContentLength, MaxResponseSize)
	}

	// +1 to detect if limit exceeded
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response size exceeds maximum allowed size of %d bytes", MaxResponseSize)
	}

	return body, nil
}
