// Package llm provides the HTTP client for the external text-generation
// service used to produce model-backed medical explanations.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/bloodcell-ai-server/internal/domain"
)

// Client talks to the text-generation endpoint. Calls run through a
// circuit breaker so a degraded model service sheds load quickly instead
// of stalling every analysis on its timeout.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
	available  bool
}

// completionRequest is the wire request for the generation endpoint.
type completionRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// completionResponse is the wire response from the generation endpoint.
type completionResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// NewClient creates a text-generation client. An empty URL yields a client
// that reports itself unavailable; callers fall back to deterministic
// narration. When a URL is configured the service is probed once so
// availability is decided at startup, matching the capability model where
// absence is a degraded mode rather than an error.
func NewClient(cfg domain.GeneratorConfig, logger *logrus.Logger) *Client {
	c := &Client{
		baseURL: cfg.URL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "TextGenerator",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	if cfg.URL != "" {
		c.available = c.probe()
	}

	return c
}

// Available reports whether the generation service answered the startup
// probe. The decision is made once; transient failures afterwards are
// handled per-call by the breaker and the caller's fallback.
func (c *Client) Available() bool {
	return c.available
}

// Generate requests a completion for the prompt with the given sampling
// parameters.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("text-generation service not configured")
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.complete(ctx, completionRequest{
			Prompt:      prompt,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		})
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return "", fmt.Errorf("text-generation service unavailable (circuit breaker open)")
		}
		return "", fmt.Errorf("text generation failed: %w", err)
	}

	return result.(string), nil
}

// complete performs one HTTP round trip against the generation endpoint.
func (c *Client) complete(ctx context.Context, reqBody completionRequest) (string, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation service returned status %d", resp.StatusCode)
	}

	var completion completionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if completion.Error != "" {
		return "", fmt.Errorf("generation service error: %s", completion.Error)
	}

	return completion.Text, nil
}

// probe checks the service health endpoint with a short deadline.
func (c *Client) probe() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).Warn("Text-generation service probe failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WithField("status", resp.StatusCode).Warn("Text-generation service probe returned non-OK status")
		return false
	}

	return true
}
