// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/tradedesk/internal/session"
	"github.com/jeranaias/tradedesk/internal/util"
)

// Configuration constants for the API client.
const (
	// maxErrorDetail caps the server message kept in an APIError, in
	// terminal columns.
	maxErrorDetail = 200

	// DefaultBaseURL is where the development API listens.
	DefaultBaseURL = "http://localhost:8000/api"

	// DefaultTimeout bounds non-streaming requests.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of retries for idempotent requests.
	DefaultMaxRetries = 3

	// DefaultRequestsPerSecond paces outgoing requests.
	DefaultRequestsPerSecond = 10

	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 10 * time.Second

	// MaxResponseSize caps non-streaming response bodies.
	MaxResponseSize = 10 * 1024 * 1024

	// maxErrorBody caps how much of a failed stream response is read.
	maxErrorBody = 64 * 1024
)

var (
	// Shared HTTP client with connection pooling for all API requests.
	sharedHTTPClient = &http.Client{
		Transport: newTransport(),
		Timeout:   DefaultTimeout,
	}

	// sharedStreamingClient has no timeout; streams are bounded by context.
	sharedStreamingClient = &http.Client{
		Transport: newTransport(),
	}
)

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// Error variables for common API failures.
var (
	// ErrNotAuthenticated means no valid session was available to sign
	// the request.
	ErrNotAuthenticated = session.ErrNotAuthenticated

	// ErrUnauthorized means the server rejected the token. The session has
	// been logged out by the time this is returned.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials means login was refused.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotFound means the conversation or resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited means the server asked us to slow down.
	ErrRateLimited = errors.New("rate limited")
)

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Detail string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("API error (HTTP %d)", e.Status)
	}
	return fmt.Sprintf("API error (HTTP %d): %s", e.Status, e.Detail)
}

// Temporary reports whether retrying may help.
func (e *APIError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// errorBody is the API's error envelope.
type errorBody struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the trading-assistant API. Safe for concurrent use once
// configured.
type Client struct {
	baseURL    string
	auth       *session.Auth
	maxRetries int
	backoff    time.Duration
	limiter    *rate.Limiter
	logger     *zap.Logger

	httpClient   *http.Client
	streamClient *http.Client
	userAgent    string
}

// New creates a client signing requests with auth.
func New(auth *session.Auth) *Client {
	return &Client{
		baseURL:      DefaultBaseURL,
		auth:         auth,
		maxRetries:   DefaultMaxRetries,
		backoff:      retryBaseDelay,
		limiter:      rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), DefaultRequestsPerSecond),
		logger:       zap.NewNop(),
		httpClient:   sharedHTTPClient,
		streamClient: sharedStreamingClient,
		userAgent:    "tradedesk",
	}
}

// WithBaseURL sets the API root, e.g. "http://localhost:8000/api".
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

// WithTimeout sets the timeout for non-streaming requests.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient = &http.Client{Transport: c.httpClient.Transport, Timeout: timeout}
	}
	return c
}

// WithMaxRetries sets the retry budget for idempotent requests.
func (c *Client) WithMaxRetries(n int) *Client {
	if n >= 0 {
		c.maxRetries = n
	}
	return c
}

// WithBackoff sets the base retry delay; it doubles per attempt up to a cap.
func (c *Client) WithBackoff(base time.Duration) *Client {
	if base > 0 {
		c.backoff = base
	}
	return c
}

// WithRateLimit paces requests to rps per second. Zero disables pacing.
func (c *Client) WithRateLimit(rps float64) *Client {
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return c
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithLogger sets the request logger.
func (c *Client) WithLogger(l *zap.Logger) *Client {
	if l != nil {
		c.logger = l
	}
	return c
}

// WithHTTPClient replaces both underlying HTTP clients.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
		c.streamClient = hc
	}
	return c
}

// WithUserAgent sets the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	if ua != "" {
		c.userAgent = ua
	}
	return c
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Auth returns the session the client signs with.
func (c *Client) Auth() *session.Auth {
	return c.auth
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// request describes one call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	// anonymous requests go out without Authorization; a token is still
	// attached when one is available.
	anonymous bool
}

func (r request) idempotent() bool {
	return r.method == http.MethodGet
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// newRequest builds an *http.Request with headers set.
func (c *Client) newRequest(ctx context.Context, r request, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.endpoint(r.path, r.query), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.auth != nil {
		token, err := c.auth.Token()
		switch {
		case err == nil:
			req.Header.Set("Authorization", "Bearer "+token)
		case !r.anonymous:
			return nil, err
		}
	} else if !r.anonymous {
		return nil, ErrNotAuthenticated
	}
	return req, nil
}

// do performs r and decodes a JSON answer into out (which may be nil).
func (c *Client) do(ctx context.Context, r request, out any) error {
	payload, err := jsonBody(r.body)
	if err != nil {
		return err
	}

	attempts := 1
	if r.idempotent() {
		attempts += c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.calculateBackoff(attempt - 1)):
			}
		}

		lastErr = c.attempt(ctx, r, payload, out)
		if lastErr == nil || !c.isRetryable(ctx, lastErr) {
			return lastErr
		}
		c.logger.Debug("Retrying API request",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func jsonBody(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return b, nil
}

func (c *Client) attempt(ctx context.Context, r request, payload []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := c.newRequest(ctx, r, payload)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.logResponse(r, resp.StatusCode, time.Since(start))

	body, err := readResponse(resp.Body, MaxResponseSize)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.handleErrorResponse(resp.StatusCode, body)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// logResponse logs method, path, status and timing. Headers and bodies
// are never logged; they carry tokens and portfolio data.
func (c *Client) logResponse(r request, status int, d time.Duration) {
	c.logger.Debug("API response",
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Int("status", status),
		zap.Duration("duration", d))
}

// readResponse reads at most limit bytes and fails if the body was longer.
func readResponse(body io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", limit)
	}
	return data, nil
}

// handleErrorResponse maps a non-2xx answer to an error. A 401 logs the
// session out.
func (c *Client) handleErrorResponse(status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		switch {
		case eb.Detail != "":
			detail = eb.Detail
		case eb.Error != "":
			detail = eb.Error
		}
	}
	detail = util.TruncateWidth(detail, maxErrorDetail)
	apiErr := &APIError{Status: status, Detail: detail}

	switch status {
	case http.StatusUnauthorized:
		if c.auth != nil {
			c.auth.Logout(session.ReasonUnauthorized)
		}
		return fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, apiErr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimited, apiErr)
	default:
		return apiErr
	}
}

// isRetryable reports whether err from one attempt warrants another.
func (c *Client) isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	if errors.Is(err, ErrNotAuthenticated) {
		return false
	}
	// Transport failures (connection refused, reset) are worth retrying.
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// calculateBackoff returns the delay before retry number attempt+1.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := c.backoff * time.Duration(1<<uint(attempt))
	if delay > retryMaxDelay || delay <= 0 {
		delay = retryMaxDelay
	}
	return delay
}
