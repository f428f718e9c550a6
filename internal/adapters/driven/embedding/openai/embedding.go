// Package openai provides a text embedder for the OpenAI embeddings
// API and compatible servers.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
	"github.com/custodia-labs/ragdex/internal/retry"
	"github.com/custodia-labs/ragdex/internal/vecmath"
)

var _ driven.TextEmbedder = (*Embedder)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the OpenAI embedder.
type Config struct {
	// BaseURL is the API base URL. Empty falls back to OPENAI_BASE_URL,
	// then the public endpoint.
	BaseURL string

	// APIKey authenticates requests. Empty falls back to OPENAI_API_KEY.
	APIKey string

	// Model is the embedding model to use.
	Model string

	// Normalize L2-normalises returned vectors.
	Normalize bool

	// Timeout is the per-request timeout (default: 30s).
	Timeout time.Duration
}

// Embedder generates text embeddings using the OpenAI embeddings API.
type Embedder struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	model     string
	normalize bool
}

// embedRequest is the /embeddings request format. Inputs are sent as a
// single batch; the API returns one vector per input.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the /embeddings response format.
type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// New creates an OpenAI embedder. The API key must be present either
// in the config or in OPENAI_API_KEY.
func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Embedder{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		normalize: cfg.Normalize,
	}, nil
}

// ModelName returns the embedding model identity.
func (e *Embedder) ModelName() string {
	return e.model
}

// EmbedTexts embeds a batch of texts, one vector per input in input
// order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	jsonBody, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var embedResp embedResponse
	err = retry.Do(ctx, retry.DefaultConfig(), func() error {
		req, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			e.baseURL+"/embeddings",
			bytes.NewReader(jsonBody),
		)
		if err != nil {
			return retry.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			return fmt.Errorf("send request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			err := fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(body))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return retry.Permanent(err)
			}
			return err
		}

		embedResp = embedResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(embedResp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(embedResp.Data), len(texts))
	}

	// The API may return entries out of order; index restores it.
	vectors := make([][]float32, len(texts))
	for _, entry := range embedResp.Data {
		if entry.Index < 0 || entry.Index >= len(vectors) {
			return nil, fmt.Errorf("openai returned out-of-range index %d", entry.Index)
		}
		vector := entry.Embedding
		if e.normalize {
			vector = vecmath.L2Normalize(vector)
		}
		vectors[entry.Index] = vector
	}
	return vectors, nil
}
