// Package ollama provides a text embedder backed by the Ollama API.
package ollama

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
	DefaultBaseURL = "http://localhost:11434"
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the Ollama embedder.
type Config struct {
	// BaseURL is the Ollama API base URL. Empty falls back to the
	// OLLAMA_BASE_URL environment variable, then the local default.
	BaseURL string

	// Model is the embedding model to use.
	Model string

	// Normalize L2-normalises returned vectors.
	Normalize bool

	// Timeout is the per-request timeout (default: 30s).
	Timeout time.Duration
}

// Embedder generates text embeddings using Ollama.
type Embedder struct {
	client    *http.Client
	baseURL   string
	model     string
	normalize bool
}

// embedRequest is the Ollama /api/embeddings request format.
type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// embedResponse is the Ollama /api/embeddings response format.
type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// New creates an Ollama embedder.
func New(cfg Config) *Embedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OLLAMA_BASE_URL")
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
		model:     cfg.Model,
		normalize: cfg.Normalize,
	}
}

// ModelName returns the embedding model identity.
func (e *Embedder) ModelName() string {
	return e.model
}

// EmbedTexts embeds a batch of texts, one vector per input in input
// order. Ollama has no native batch endpoint, so texts are embedded
// one request at a time; the caller owns batch-level concurrency.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := e.embedOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		vectors[i] = vector
	}
	return vectors, nil
}

func (e *Embedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	jsonBody, err := json.Marshal(embedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	var embedding []float32
	err = retry.Do(ctx, retry.DefaultConfig(), func() error {
		req, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			e.baseURL+"/api/embeddings",
			bytes.NewReader(jsonBody),
		)
		if err != nil {
			return retry.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			return fmt.Errorf("send request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			err := fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return retry.Permanent(err)
			}
			return err
		}

		var embedResp embedResponse
		if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		embedding = embedResp.Embedding
		return nil
	})
	if err != nil {
		return nil, err
	}

	if e.normalize {
		embedding = vecmath.L2Normalize(embedding)
	}
	return embedding, nil
}

// Ping validates the service is reachable via the /api/tags endpoint.
func (e *Embedder) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama: API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
