// Package custom provides embedders backed by a local inference
// server API: a text embedder and a multimodal image embedder that
// also projects text into the image vector space.
package custom

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
	"github.com/custodia-labs/ragdex/internal/retry"
	"github.com/custodia-labs/ragdex/internal/vecmath"
)

var (
	_ driven.TextEmbedder  = (*TextEmbedder)(nil)
	_ driven.ImageEmbedder = (*ImageEmbedder)(nil)
)

// Default configuration values.
const (
	DefaultTextBaseURL  = "http://localhost:5500"
	DefaultImageBaseURL = "http://localhost:5600"
	DefaultTimeout      = 60 * time.Second
)

// TextConfig holds configuration for the custom text embedder.
type TextConfig struct {
	// BaseURL is the server base URL. Empty falls back to
	// CUSTOM_TEXT_EMBEDDER_URL, then the local default.
	BaseURL string

	// Model is the embedding model to use.
	Model string

	// Normalize asks the server to L2-normalise returned vectors.
	Normalize bool

	// Timeout is the per-request timeout (default: 60s).
	Timeout time.Duration
}

// TextEmbedder generates text embeddings via the server's /embed
// endpoint.
type TextEmbedder struct {
	client    *http.Client
	baseURL   string
	model     string
	normalize bool
}

// NewText creates a custom text embedder.
func NewText(cfg TextConfig) *TextEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("CUSTOM_TEXT_EMBEDDER_URL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTextBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &TextEmbedder{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		normalize: cfg.Normalize,
	}
}

// ModelName returns the embedding model identity.
func (e *TextEmbedder) ModelName() string {
	return e.model
}

// textEmbedRequest is the text /embed request format.
type textEmbedRequest struct {
	Text      string `json:"text"`
	Model     string `json:"model"`
	Normalize bool   `json:"normalize"`
}

// embedResponse is the shared embedding response format.
type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// EmbedTexts embeds a batch of texts, one vector per input in input
// order.
func (e *TextEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		body := textEmbedRequest{Text: text, Model: e.model, Normalize: e.normalize}
		vector, err := postEmbed(ctx, e.client, e.baseURL+"/embed", body)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		vectors[i] = vector
	}
	return vectors, nil
}

// ImageConfig holds configuration for the custom image embedder.
type ImageConfig struct {
	// BaseURL is the server base URL. Empty falls back to
	// CUSTOM_IMG_EMBEDDER_URL, then the local default.
	BaseURL string

	// Model is the embedding model to use.
	Model string

	// Normalize L2-normalises text projections client-side, matching
	// the server's image-side normalisation.
	Normalize bool

	// Timeout is the per-request timeout (default: 60s).
	Timeout time.Duration
}

// ImageEmbedder generates image embeddings via /embed and projects
// text into the same vector space via /embed-text.
type ImageEmbedder struct {
	client    *http.Client
	baseURL   string
	model     string
	normalize bool
}

// NewImage creates a custom image embedder.
func NewImage(cfg ImageConfig) *ImageEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("CUSTOM_IMG_EMBEDDER_URL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultImageBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &ImageEmbedder{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		normalize: cfg.Normalize,
	}
}

// ModelName returns the embedding model identity.
func (e *ImageEmbedder) ModelName() string {
	return e.model
}

// imageEmbedRequest is the image /embed request format.
type imageEmbedRequest struct {
	ImageBase64 string `json:"image_base64"`
	ModelName   string `json:"model_name"`
}

// textProjectRequest is the /embed-text request format.
type textProjectRequest struct {
	Text      string `json:"text"`
	ModelName string `json:"model_name"`
}

// EmbedImages embeds raw image bytes, one vector per input.
func (e *ImageEmbedder) EmbedImages(ctx context.Context, images [][]byte) ([][]float32, error) {
	vectors := make([][]float32, len(images))
	for i, img := range images {
		body := imageEmbedRequest{
			ImageBase64: DataURI(base64.StdEncoding.EncodeToString(img)),
			ModelName:   e.model,
		}
		vector, err := postEmbed(ctx, e.client, e.baseURL+"/embed", body)
		if err != nil {
			return nil, fmt.Errorf("embed image %d: %w", i, err)
		}
		vectors[i] = vector
	}
	return vectors, nil
}

// EmbedTexts embeds texts into the image model's vector space.
func (e *ImageEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		body := textProjectRequest{Text: text, ModelName: e.model}
		vector, err := postEmbed(ctx, e.client, e.baseURL+"/embed-text", body)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		if e.normalize {
			vector = vecmath.L2Normalize(vector)
		}
		vectors[i] = vector
	}
	return vectors, nil
}

// DataURI wraps a bare base64 payload as a data URI, leaving payloads
// that already carry one untouched.
func DataURI(b64 string) string {
	if strings.HasPrefix(b64, "data:image/") {
		return b64
	}
	return "data:image/png;base64," + b64
}

// postEmbed posts a JSON body and decodes the embedding response,
// retrying transient failures.
func postEmbed(ctx context.Context, client *http.Client, url string, body any) ([]float32, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var embedding []float32
	err = retry.Do(ctx, retry.DefaultConfig(), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
		if err != nil {
			return retry.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("send request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			err := fmt.Errorf("embedder error (status %d): %s", resp.StatusCode, string(respBody))
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
	return embedding, nil
}
