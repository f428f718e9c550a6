package preprocess

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"time"

	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
	"github.com/custodia-labs/ragdex/internal/retry"
)

var _ driven.Transcriber = (*Transcriber)(nil)

// Default configuration values.
const (
	DefaultTranscriberBaseURL = "http://localhost:5100"
	DefaultTranscriberTimeout = 60 * time.Second
)

// TranscriberConfig holds configuration for the transcription client.
type TranscriberConfig struct {
	// BaseURL is the server base URL. Empty falls back to
	// CUSTOM_TRANSCRIBER_BASE_URL, then the local default.
	BaseURL string

	// Model is the transcription model to use.
	Model string

	// Timeout is the per-request timeout (default: 60s).
	Timeout time.Duration
}

// Transcriber converts audio to text via the server's /transcribe
// endpoint. The audio is posted as a multipart upload.
type Transcriber struct {
	client  *http.Client
	baseURL string
	model   string
}

// transcribeResponse is the /transcribe response format.
type transcribeResponse struct {
	Text string `json:"text"`
}

// NewTranscriber creates a transcription client.
func NewTranscriber(cfg TranscriberConfig) *Transcriber {
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("CUSTOM_TRANSCRIBER_BASE_URL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTranscriberBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTranscriberTimeout
	}

	return &Transcriber{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
	}
}

// ModelName returns the transcription model identity.
func (t *Transcriber) ModelName() string {
	return t.model
}

// Transcribe converts audio bytes to text.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, mime string) (string, error) {
	body, contentType, err := t.buildForm(audio, mime)
	if err != nil {
		return "", err
	}

	var text string
	err = retry.Do(ctx, retry.DefaultConfig(), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/transcribe", bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := t.client.Do(req)
		if err != nil {
			return fmt.Errorf("send request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			err := fmt.Errorf("transcriber error (status %d): %s", resp.StatusCode, string(respBody))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return retry.Permanent(err)
			}
			return err
		}

		var transcribeResp transcribeResponse
		if err := json.NewDecoder(resp.Body).Decode(&transcribeResp); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		text = transcribeResp.Text
		return nil
	})
	return text, err
}

func (t *Transcriber) buildForm(audio []byte, mime string) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="audio.wav"`)
	header.Set("Content-Type", mime)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", fmt.Errorf("write audio: %w", err)
	}

	if err := writer.WriteField("model_name", t.model); err != nil {
		return nil, "", fmt.Errorf("write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}
