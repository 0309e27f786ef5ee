package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
)

// Client handles communication with the self-hosted embedding microservice
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new embedding service client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// BatchEmbedRequest represents multiple text embedding request
type BatchEmbedRequest struct {
	Texts []string `json:"texts"`
}

// BatchEmbedResponse represents the batch embedding response
type BatchEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Count      int         `json:"count"`
	Dimension  int         `json:"dimension"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status               string `json:"status"`
	EmbeddingModel       string `json:"embedding_model"`
	EmbeddingModelLoaded bool   `json:"embedding_model_loaded"`
}

// EmbedStrings generates embeddings for multiple texts in one call
func (c *Client) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty texts list provided")
	}

	jsonData, err := json.Marshal(BatchEmbedRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed/batch", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding service error (status %d): %s", resp.StatusCode, string(body))
	}

	var embedResp BatchEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return embedResp.Embeddings, nil
}

// HealthCheck checks if the embedding service is healthy
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build health check request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make health check request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service unhealthy (status %d)", resp.StatusCode)
	}

	var healthResp HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}

	return &healthResp, nil
}

var _ embedding.Embedder = (*Client)(nil)
