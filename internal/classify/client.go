// Package classify provides the cell-classification capability: an HTTP
// inference client for a deployed model endpoint and a deterministic mock
// used when no endpoint is configured.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/bloodcell-ai-server/internal/domain"
)

// Client posts smear image bytes to the inference endpoint and receives
// one score vector per detected cell.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// inferenceResponse is the wire response from the inference endpoint.
type inferenceResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

// NewClient creates an inference client for the configured endpoint.
func NewClient(cfg domain.ClassifierConfig, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: cfg.URL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// Classify sends the image to the inference endpoint and decodes the
// per-cell prediction vectors.
func (c *Client) Classify(ctx context.Context, image []byte) ([]domain.Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference service returned status %d", resp.StatusCode)
	}

	var decoded inferenceResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("inference service error: %s", decoded.Error)
	}

	predictions := make([]domain.Prediction, 0, len(decoded.Predictions))
	for i, scores := range decoded.Predictions {
		if len(scores) != domain.NumCellClasses {
			return nil, fmt.Errorf("prediction %d has %d scores, expected %d", i, len(scores), domain.NumCellClasses)
		}
		predictions = append(predictions, domain.Prediction(scores))
	}

	c.logger.WithField("cells", len(predictions)).Debug("Classified smear image")
	return predictions, nil
}
