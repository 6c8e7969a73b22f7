// Package apiclient talks to the remote banking API on behalf of a console session
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// UnknownErrorMessage is shown when a failure carries no message from the API
const UnknownErrorMessage = "Unknown error occurred"

// Config configures a Client
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	// RateLimit caps outgoing requests per second across every session; zero disables it
	RateLimit rate.Limit
	Burst     int
	Logger    *slog.Logger
}

// Client performs JSON requests against the banking API.
// A Client without a token may only call public endpoints such as Login.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	token   string
}

// New creates a Client
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(cfg.RateLimit, burst)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// WithToken returns a Client that sends token as its bearer credential.
// The copy shares the HTTP client and rate limiter with c.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// ErrorData is the body the banking API sends with a failed request
type ErrorData struct {
	Message string `json:"message"`
}

// ErrorResponse mirrors the failed HTTP response
type ErrorResponse struct {
	Status int       `json:"status"`
	Data   ErrorData `json:"data"`
}

// Error is a non-2xx answer from the banking API
type Error struct {
	Method   string
	Path     string
	Response ErrorResponse
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Response.Status, e.Response.Data.Message)
}

// StatusCode returns the HTTP status of the failed response
func (e *Error) StatusCode() int {
	return e.Response.Status
}

// Message returns the user-facing message carried by err, or
// UnknownErrorMessage when it has none
func Message(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Response.Data.Message != "" {
		return apiErr.Response.Data.Message
	}
	return UnknownErrorMessage
}

// StatusCode returns the upstream status carried by err, or fallback
func StatusCode(err error, fallback int) int {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Response.Status != 0 {
		return apiErr.Response.Status
	}
	return fallback
}

// do sends body as JSON and decodes a 2xx response into out. Either may be nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("banking api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(method, path, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeError(method, path string, resp *http.Response) error {
	apiErr := &Error{
		Method:   method,
		Path:     path,
		Response: ErrorResponse{Status: resp.StatusCode},
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &apiErr.Response.Data); err != nil || apiErr.Response.Data.Message == "" {
		if text := strings.TrimSpace(string(raw)); text != "" && !strings.HasPrefix(text, "{") && len(text) < 200 {
			apiErr.Response.Data.Message = text
		}
	}
	return apiErr
}

// Get adapts c into a fetch transport decoding the response as T
func Get[T any](c *Client) func(ctx context.Context, path string) (T, error) {
	return func(ctx context.Context, path string) (T, error) {
		var out T
		err := c.do(ctx, http.MethodGet, path, nil, &out)
		return out, err
	}
}
