// Package openai provides a generation backend for the OpenAI chat
// completions API and compatible servers.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
	"github.com/custodia-labs/ragdex/internal/retry"
)

var _ driven.Generator = (*Generator)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the OpenAI generator.
type Config struct {
	// BaseURL is the API base URL. Empty falls back to OPENAI_BASE_URL,
	// then the public endpoint.
	BaseURL string

	// APIKey authenticates requests. Empty falls back to OPENAI_API_KEY.
	APIKey string

	// Model is the generation model to use.
	Model string

	// Timeout is the per-request timeout (default: 120s).
	Timeout time.Duration
}

// Generator produces grounded responses through /chat/completions.
type Generator struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// chatMessage is the OpenAI chat message format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the /chat/completions request format.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

// chatResponse is the non-streaming response format.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// streamChunk is one server-sent event payload in a streaming
// response.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// apiError is the error object the API returns in non-2xx bodies.
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// New creates an OpenAI generator. The API key must be present either
// in the config or in OPENAI_API_KEY.
func New(cfg Config) (*Generator, error) {
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

	return &Generator{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// ModelName returns the generation model identity.
func (g *Generator) ModelName() string {
	return g.model
}

// Generate produces the full response.
func (g *Generator) Generate(ctx context.Context, req driven.GenerateRequest) (string, error) {
	jsonBody, err := json.Marshal(g.buildRequest(req, false))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var response string
	err = retry.Do(ctx, retry.DefaultConfig(), func() error {
		resp, err := g.post(ctx, jsonBody)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := g.checkStatus(resp); err != nil {
			return err
		}

		var chatResp chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if len(chatResp.Choices) == 0 {
			return retry.Permanent(fmt.Errorf("openai returned no choices"))
		}
		response = chatResp.Choices[0].Message.Content
		return nil
	})
	return response, err
}

// GenerateStream produces the response incrementally, invoking fn for
// every fragment in order. Streams are not retried once output has
// begun.
func (g *Generator) GenerateStream(ctx context.Context, req driven.GenerateRequest, fn func(string) error) error {
	jsonBody, err := json.Marshal(g.buildRequest(req, true))
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	resp, err := g.post(ctx, jsonBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := g.checkStatus(resp); err != nil {
		return err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		raw := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data: ")))
		if bytes.Equal(raw, []byte("[DONE]")) {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal(raw, &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			if err := fn(content); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

func (g *Generator) buildRequest(req driven.GenerateRequest, stream bool) chatRequest {
	messages := req.ChatMessages()
	converted := make([]chatMessage, len(messages))
	for i, msg := range messages {
		converted[i] = chatMessage{Role: msg.Role, Content: msg.Content}
	}

	return chatRequest{
		Model:       g.model,
		Messages:    converted,
		Stream:      stream,
		MaxTokens:   req.Params.MaxTokens,
		Temperature: req.Params.Temperature,
		Stop:        req.Params.StopWords,
	}
}

func (g *Generator) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	return resp, nil
}

// checkStatus reads and classifies a non-OK response body. The
// context_length_exceeded code surfaces as
// domain.ErrTokenLimitExceeded.
func (g *Generator) checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)

	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil {
		if apiErr.Error.Code == "context_length_exceeded" {
			return retry.Permanent(fmt.Errorf("%w: %s", domain.ErrTokenLimitExceeded, apiErr.Error.Message))
		}
	}

	err := fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(body))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return retry.Permanent(err)
	}
	return err
}
