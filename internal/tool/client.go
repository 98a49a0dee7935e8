package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/young1lin/searchbridge/internal/config"
	"github.com/young1lin/searchbridge/internal/models"
	"github.com/young1lin/searchbridge/pkg/logger"
)

const (
	defaultCallTimeout   = 10 * time.Second
	defaultHealthTimeout = 2 * time.Second
	defaultMaxAttempts   = 3
	defaultBackoffUnit   = time.Second
	defaultServiceName   = "MCP server"

	maxResponseBody = 4 << 20
)

// Client calls the tool service over HTTP: a liveness probe, then up to
// maxAttempts POSTs with exponential backoff between them.
type Client struct {
	baseURL       string
	serviceName   string
	callTimeout   time.Duration
	healthTimeout time.Duration
	maxAttempts   int
	backoffUnit   time.Duration

	http    *http.Client
	breaker *gobreaker.CircuitBreaker[models.ToolResponse]
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for probe and calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSleep replaces the backoff sleep, e.g. to record delays in tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// NewClient creates a tool service client from configuration.
func NewClient(cfg *config.ToolConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(cfg.ServiceURL, "/"),
		serviceName:   cfg.ServiceName,
		callTimeout:   cfg.CallTimeout,
		healthTimeout: cfg.HealthTimeout,
		maxAttempts:   cfg.MaxAttempts,
		backoffUnit:   cfg.BackoffUnit,
		http:          &http.Client{},
		sleep:         sleepContext,
	}
	if c.serviceName == "" {
		c.serviceName = defaultServiceName
	}
	if c.callTimeout <= 0 {
		c.callTimeout = defaultCallTimeout
	}
	if c.healthTimeout <= 0 {
		c.healthTimeout = defaultHealthTimeout
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.backoffUnit <= 0 {
		c.backoffUnit = defaultBackoffUnit
	}
	if cfg.Breaker.Enabled {
		c.breaker = newBreaker(c.serviceName, cfg.Breaker)
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newBreaker(name string, cfg config.BreakerConfig) *gobreaker.CircuitBreaker[models.ToolResponse] {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return gobreaker.NewCircuitBreaker[models.ToolResponse](gobreaker.Settings{
		Name:        "tool:" + name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// Invoke dispatches call to the tool service.
func (c *Client) Invoke(ctx context.Context, call models.ToolCall) models.ToolResponse {
	log := logger.FromContext(ctx).With(zap.String("tool", call.Name))

	if call.Name != models.ToolFetchWebContent {
		log.Warn("rejecting unknown tool")
		return models.ToolError(ReasonUnknownTool)
	}

	if c.breaker != nil && c.breaker.State() == gobreaker.StateOpen {
		return models.ToolError(c.serviceName + " circuit open")
	}

	if !c.Healthy(ctx) {
		log.Warn("tool service not available", zap.String("url", c.baseURL))
		return models.ToolError(c.serviceName + " not available")
	}

	if c.breaker == nil {
		resp, err := c.dispatch(ctx, call)
		if err != nil {
			return models.ToolError(c.serviceName + " failed after retries")
		}
		return resp
	}

	resp, err := c.breaker.Execute(func() (models.ToolResponse, error) {
		return c.dispatch(ctx, call)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return models.ToolError(c.serviceName + " circuit open")
	case err != nil:
		return models.ToolError(c.serviceName + " failed after retries")
	}
	return resp
}

// Healthy probes GET /health. Only a 200 counts as available.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// dispatch makes up to maxAttempts calls, sleeping 2^attempt backoff units
// after each failed attempt that is not the last.
func (c *Client) dispatch(ctx context.Context, call models.ToolCall) (models.ToolResponse, error) {
	log := logger.FromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.post(ctx, call)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		log.Warn("tool call attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxAttempts),
			zap.Error(err),
		)

		if attempt < c.maxAttempts {
			if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
				return models.ToolResponse{}, fmt.Errorf("backoff interrupted: %w", err)
			}
		}
	}
	return models.ToolResponse{}, fmt.Errorf("%d attempts failed: %w", c.maxAttempts, lastErr)
}

func (c *Client) backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * c.backoffUnit
}

func (c *Client) post(ctx context.Context, call models.ToolCall) (models.ToolResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	body, err := json.Marshal(models.ToolCallRequest{Name: call.Name, Parameters: call.Parameters})
	if err != nil {
		return models.ToolResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tool_call", bytes.NewReader(body))
	if err != nil {
		return models.ToolResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if traceID := logger.TraceIDFromContext(ctx); traceID != "" {
		req.Header.Set("X-Trace-ID", traceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.ToolResponse{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return models.ToolResponse{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.ToolResponse{}, fmt.Errorf("tool service status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out models.ToolResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return models.ToolResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
