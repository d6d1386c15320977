package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/Prajwal-ai11002/cci-global-bot/internal/config"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/observability"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/resilience"
)

const maxErrorBody = 4 << 10

// Client talks to the remote dialogue service over HTTP/JSON. Every error it
// returns carries the transport reason. Calls are never retried.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	circuitBreaker *resilience.CircuitBreaker
	logger         zerolog.Logger
}

// NewClient creates a dialogue client from configuration
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    cfg.BaseURL(),
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		circuitBreaker: resilience.NewCircuitBreaker(
			"dialogue",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
		logger: observability.WithComponent("dialogue"),
	}
}

// Chat submits one user turn
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.do(ctx, http.MethodPost, "/chat", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, transportError(&ServiceError{Message: resp.Error})
	}
	return &resp, nil
}

// Conversation fetches the server-side history and customer info for userID
func (c *Client) Conversation(ctx context.Context, userID string) (*Conversation, error) {
	var conv Conversation
	if err := c.do(ctx, http.MethodGet, "/conversation/"+url.PathEscape(userID), nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// CareersInfo fetches the careers panel content
func (c *Client) CareersInfo(ctx context.Context) (*CareersInfo, error) {
	var info CareersInfo
	if err := c.do(ctx, http.MethodGet, "/careers-info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Health probes the service. It bypasses the circuit breaker so the
// connectivity indicator always reflects the live backend.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.roundTrip(ctx, http.MethodGet, "/health", nil, &status); err != nil {
		return nil, transportError(err)
	}
	return &status, nil
}

// DeleteUser clears the server-side conversation for userID
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(userID), nil, nil)
}

// CircuitState exposes the breaker state for status displays
func (c *Client) CircuitState() resilience.CircuitState {
	return c.circuitBreaker.GetState()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	err := c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		return c.roundTrip(ctx, method, path, body, out)
	})
	if errors.Is(err, resilience.ErrOpen) {
		c.logger.Warn().Str("path", path).Msg("Dialogue service circuit open, failing fast")
	}
	return transportError(err)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	requestID := observability.NewCorrelationID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger := observability.WithCorrelationID(c.logger, requestID)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("Request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Dialogue service replied")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Detail: errorDetail(resp.Body)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// errorDetail extracts FastAPI's {"detail": ...} from an error body
func errorDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if s, ok := body.Detail.(string); ok {
			return s
		}
	}
	return ""
}
