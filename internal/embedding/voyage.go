// Package embedding turns chunk text into vectors.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/randalmurphal/metta-indexer/internal/chunk"
)

const voyageAPIURL = "https://api.voyageai.com/v1/embeddings"

// Embedder produces one vector per input text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// VoyageClient handles embeddings via Voyage AI API.
type VoyageClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// Option configures a VoyageClient.
type Option func(*VoyageClient)

// WithBaseURL points the client at another endpoint.
func WithBaseURL(url string) Option {
	return func(c *VoyageClient) { c.baseURL = url }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *VoyageClient) { c.client = hc }
}

// NewVoyageClient creates a new Voyage embedding client.
func NewVoyageClient(apiKey, model string, opts ...Option) *VoyageClient {
	c := &VoyageClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: voyageAPIURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type voyageRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

type voyageResponse struct {
	Data []voyageEmbedding `json:"data"`
}

type voyageEmbedding struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// Embed generates embeddings for the given texts.
func (c *VoyageClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	jsonBody, err := json.Marshal(voyageRequest{
		Input:     texts,
		Model:     c.model,
		InputType: "document",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var voyageResp voyageResponse
	if err := json.Unmarshal(body, &voyageResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	// Sort by index to ensure order matches input
	vectors := make([][]float32, len(texts))
	for _, emb := range voyageResp.Data {
		if emb.Index < 0 || emb.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", emb.Index)
		}
		vectors[emb.Index] = emb.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
	}

	return vectors, nil
}

// Dimension returns the vector dimension for the model.
func (c *VoyageClient) Dimension() int {
	switch c.model {
	case "voyage-3-lite", "voyage-4-lite":
		return 512
	default:
		return 1024
	}
}

// EmbedChunks fills in the Vector of every chunk, batchSize texts per
// request.
func EmbedChunks(ctx context.Context, e Embedder, chunks []chunk.Chunk, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 128 // Voyage default max
	}

	for i := 0; i < len(chunks); i += batchSize {
		end := min(i+batchSize, len(chunks))

		texts := make([]string, 0, end-i)
		for _, c := range chunks[i:end] {
			texts = append(texts, c.Text)
		}

		vectors, err := e.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("batch %d-%d failed: %w", i, end, err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("batch %d-%d: got %d vectors for %d texts", i, end, len(vectors), len(texts))
		}
		for j, v := range vectors {
			chunks[i+j].Vector = v
		}
	}

	return nil
}
