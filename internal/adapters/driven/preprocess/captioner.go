// Package preprocess provides clients for the local inference servers
// that caption images and transcribe audio during ingestion.
package preprocess

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
)

var _ driven.Captioner = (*Captioner)(nil)

// Default configuration values.
const (
	DefaultCaptionerBaseURL = "http://localhost:5150"
	DefaultCaptionerTimeout = 60 * time.Second
)

// CaptionerConfig holds configuration for the captioning client.
type CaptionerConfig struct {
	// BaseURL is the server base URL. Empty falls back to
	// CUSTOM_CAPTIONER_BASE_URL, then the local default.
	BaseURL string

	// Model is the captioning model to use.
	Model string

	// Timeout is the per-request timeout (default: 60s).
	Timeout time.Duration
}

// Captioner generates image captions via the server's /caption
// endpoint.
type Captioner struct {
	client  *http.Client
	baseURL string
	model   string
}

// captionRequest is the /caption request format.
type captionRequest struct {
	ImageBase64 string `json:"image_base64"`
	ModelName   string `json:"model_name"`
}

// captionResponse is the /caption response format.
type captionResponse struct {
	Caption string `json:"caption"`
}

// NewCaptioner creates a captioning client.
func NewCaptioner(cfg CaptionerConfig) *Captioner {
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("CUSTOM_CAPTIONER_BASE_URL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCaptionerBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultCaptionerTimeout
	}

	return &Captioner{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
	}
}

// ModelName returns the captioning model identity.
func (c *Captioner) ModelName() string {
	return c.model
}

// GenerateCaptions captions a batch of images, one caption per input
// in input order.
func (c *Captioner) GenerateCaptions(ctx context.Context, images [][]byte) ([]string, error) {
	captions := make([]string, len(images))
	for i, img := range images {
		caption, err := c.captionOne(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("caption image %d: %w", i, err)
		}
		captions[i] = caption
	}
	return captions, nil
}

func (c *Captioner) captionOne(ctx context.Context, image []byte) (string, error) {
	body := captionRequest{
		ImageBase64: dataURI(base64.StdEncoding.EncodeToString(image)),
		ModelName:   c.model,
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var caption string
	err = retry.Do(ctx, retry.DefaultConfig(), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/caption", bytes.NewReader(jsonBody))
		if err != nil {
			return retry.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("send request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			err := fmt.Errorf("captioner error (status %d): %s", resp.StatusCode, string(respBody))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return retry.Permanent(err)
			}
			return err
		}

		var captionResp captionResponse
		if err := json.NewDecoder(resp.Body).Decode(&captionResp); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		caption = captionResp.Caption
		return nil
	})
	return caption, err
}

// dataURI wraps a bare base64 payload as a data URI, leaving payloads
// that already carry one untouched.
func dataURI(b64 string) string {
	if strings.HasPrefix(b64, "data:image/") {
		return b64
	}
	return "data:image/png;base64," + b64
}
