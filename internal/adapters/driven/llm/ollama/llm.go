// Package ollama provides a generation backend using the Ollama chat
// API.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
	"github.com/custodia-labs/ragdex/internal/retry"
)

var _ driven.Generator = (*Generator)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the Ollama generator.
type Config struct {
	// BaseURL is the Ollama API base URL. Empty falls back to
	// OLLAMA_BASE_URL, then the local default.
	BaseURL string

	// Model is the generation model to use.
	Model string

	// Timeout is the per-request timeout (default: 120s).
	Timeout time.Duration
}

// Generator produces grounded responses through /api/chat.
type Generator struct {
	client  *http.Client
	baseURL string
	model   string
}

// chatMessage is the Ollama chat message format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// options holds Ollama generation parameters.
type options struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// chatRequest is the /api/chat request format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *options      `json:"options,omitempty"`
}

// chatResponse is one /api/chat response object. Streaming responses
// are a sequence of these, one per line.
type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// New creates an Ollama generator.
func New(cfg Config) *Generator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OLLAMA_BASE_URL")
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
		model:   cfg.Model,
	}
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
		response = chatResp.Message.Content
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
		if len(line) == 0 {
			continue
		}

		var chatResp chatResponse
		if err := json.Unmarshal(line, &chatResp); err != nil {
			continue
		}
		if chatResp.Error != "" {
			return classifyError(chatResp.Error)
		}
		if chatResp.Message.Content != "" {
			if err := fn(chatResp.Message.Content); err != nil {
				return err
			}
		}
		if chatResp.Done {
			break
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

	out := chatRequest{Model: g.model, Messages: converted, Stream: stream}
	p := req.Params
	if p.MaxTokens > 0 || p.Temperature > 0 || len(p.StopWords) > 0 {
		out.Options = &options{
			NumPredict:  p.MaxTokens,
			Temperature: p.Temperature,
			Stop:        p.StopWords,
		}
	}
	return out
}

func (g *Generator) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	return resp, nil
}

// checkStatus reads and classifies a non-OK response body. Context
// overflow surfaces as domain.ErrTokenLimitExceeded.
func (g *Generator) checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		if tokenErr := classifyError(errResp.Error); errors.Is(tokenErr, domain.ErrTokenLimitExceeded) {
			return retry.Permanent(tokenErr)
		}
	}

	err := fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return retry.Permanent(err)
	}
	return err
}

func classifyError(msg string) error {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "token limit") || strings.Contains(lower, "too many tokens") {
		return fmt.Errorf("%w: %s", domain.ErrTokenLimitExceeded, msg)
	}
	return fmt.Errorf("ollama error: %s", msg)
}
