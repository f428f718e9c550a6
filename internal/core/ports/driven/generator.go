package driven

import (
	"context"

	"github.com/custodia-labs/ragdex/internal/core/domain"
)

// ChatMessage is a single turn of conversation history.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// GenerateParams carries provider sampling parameters.
type GenerateParams struct {
	// MaxTokens bounds the completion length. Zero leaves the provider
	// default.
	MaxTokens int `json:"max_tokens"`

	// Temperature controls randomness.
	Temperature float64 `json:"temperature"`

	// StopWords stop generation when encountered.
	StopWords []string `json:"stop_words,omitempty"`

	// ContextLimit overrides the model's known context window size for
	// token-budget validation. Zero uses the built-in table.
	ContextLimit int `json:"context_limit,omitempty"`
}

// GenerateRequest is a grounded generation request: the question, the
// retrieved context in rank order, and conversation state.
type GenerateRequest struct {
	Query        string
	Context      []domain.ScoredItem
	SystemPrompt string
	History      []ChatMessage
	Params       GenerateParams
}

// ChatMessages assembles the chat payload for the request: system
// prompt, retrieved context (text chunks as system context, image
// captions labelled), conversation history, then the question.
func (r GenerateRequest) ChatMessages() []ChatMessage {
	var messages []ChatMessage

	if r.SystemPrompt != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: r.SystemPrompt})
	}

	for _, item := range r.Context {
		switch item.Modality {
		case domain.ModalityImage:
			if item.Caption != "" {
				messages = append(messages, ChatMessage{Role: "system", Content: "Image: " + item.Caption})
			}
		case domain.ModalityText:
			messages = append(messages, ChatMessage{Role: "system", Content: item.Content})
		}
	}

	messages = append(messages, r.History...)
	messages = append(messages, ChatMessage{Role: "user", Content: r.Query})
	return messages
}

// Generator produces text grounded on retrieved context.
//
// Implementations must surface the provider's token/context limit
// condition as domain.ErrTokenLimitExceeded.
type Generator interface {
	// Generate produces the full response.
	Generate(ctx context.Context, req GenerateRequest) (string, error)

	// GenerateStream produces the response incrementally, invoking fn
	// for every text fragment in order. fn returning an error stops the
	// stream and propagates that error.
	GenerateStream(ctx context.Context, req GenerateRequest, fn func(fragment string) error) error

	// ModelName returns the generation model identity.
	ModelName() string
}
