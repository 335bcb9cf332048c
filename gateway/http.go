package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/promptforge/promptforge/internal/logging"
)

// HTTPGateway talks to a text-generation endpoint over HTTP. The wire shape is
// a single POST carrying {"model": ..., "prompt": ...} and expecting
// {"text": ...} back.
type HTTPGateway struct {
	endpoint   string
	model      string
	headers    map[string]string
	client     *http.Client
	limiter    *rate.Limiter
	logger     logging.Logger
	maxRetries int
	retryDelay time.Duration
}

// HTTPOption configures an HTTPGateway.
type HTTPOption func(*HTTPGateway)

// WithHeader adds an HTTP header to every request, e.g. an authorization token.
func WithHeader(key, value string) HTTPOption {
	return func(g *HTTPGateway) {
		g.headers[key] = value
	}
}

// WithRateLimit throttles outgoing calls across concurrent pipeline runs.
func WithRateLimit(r rate.Limit, burst int) HTTPOption {
	return func(g *HTTPGateway) {
		g.limiter = rate.NewLimiter(r, burst)
	}
}

// WithRetries enables bounded retry on transport failures with a fixed delay.
func WithRetries(maxRetries int, delay time.Duration) HTTPOption {
	return func(g *HTTPGateway) {
		g.maxRetries = maxRetries
		g.retryDelay = delay
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(g *HTTPGateway) {
		g.client = client
	}
}

// NewHTTPGateway creates a gateway against the given endpoint. The timeout
// applies per call on top of any caller-supplied context deadline.
func NewHTTPGateway(endpoint, model string, timeout time.Duration, logger logging.Logger, opts ...HTTPOption) *HTTPGateway {
	g := &HTTPGateway{
		endpoint: endpoint,
		model:    model,
		headers:  map[string]string{"Content-Type": "application/json"},
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text string `json:"text"`
}

// Generate sends the rendered prompt and returns the generated text.
func (g *HTTPGateway) Generate(ctx context.Context, prompt string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", classify(err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		text, err := g.attempt(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		g.logger.Warn("gateway call failed", "error", err, "attempt", attempt+1)

		if IsTimeout(err) || attempt == g.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return "", classify(ctx.Err())
		case <-time.After(g.retryDelay):
		}
	}
	return "", lastErr
}

func (g *HTTPGateway) attempt(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(generateRequest{Model: g.model, Prompt: prompt})
	if err != nil {
		return "", NewError(KindBadResponse, "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", NewError(KindUnavailable, "failed to create request", err)
	}
	for k, v := range g.headers {
		req.Header.Set(k, v)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewError(KindBadResponse, "failed to read response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		g.logger.Error("gateway API error", "status", resp.StatusCode, "body", string(body))
		return "", NewError(KindUnavailable, fmt.Sprintf("status code %d", resp.StatusCode), nil)
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", NewError(KindBadResponse, "failed to parse response", err)
	}
	if parsed.Text == "" {
		return "", NewError(KindBadResponse, "empty generation", nil)
	}
	return parsed.Text, nil
}

// classify maps transport errors onto the gateway error taxonomy so a
// deadline hit is never conflated with an unreachable backend.
func classify(err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(KindTimeout, "deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewError(KindTimeout, "request cancelled", err)
	default:
		var urlTimeout interface{ Timeout() bool }
		if errors.As(err, &urlTimeout) && urlTimeout.Timeout() {
			return NewError(KindTimeout, "request timed out", err)
		}
		return NewError(KindUnavailable, "request failed", err)
	}
}
