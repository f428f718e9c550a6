// Package tokenlimit validates chat payloads against model context
// windows before they are sent to a generation backend.
package tokenlimit

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
)

// modelContextLimits holds the known context window sizes for models
// where the caller has not supplied an explicit override.
var modelContextLimits = map[string]int{
	"gpt-3.5-turbo":     16385,
	"gpt-3.5-turbo-16k": 16385,
	"gpt-4":             8192,
	"gpt-4-32k":         32768,
	"gpt-4o":            128000,
	"gpt-4-turbo":       128000,
}

// CountFunc counts the tokens a string encodes to for a given model.
// It is injectable so tests do not depend on tokeniser data files.
type CountFunc func(model, text string) (int, error)

// TiktokenCount is the default CountFunc. Models unknown to tiktoken
// fall back to the cl100k_base encoding.
func TiktokenCount(model, text string) (int, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0, fmt.Errorf("load tokeniser: %w", err)
		}
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// Validator checks that a prompt plus its generation budget fits the
// model's context window.
type Validator struct {
	count CountFunc
}

// NewValidator returns a Validator using the given counter, or
// TiktokenCount when nil.
func NewValidator(count CountFunc) *Validator {
	if count == nil {
		count = TiktokenCount
	}
	return &Validator{count: count}
}

// CountChatTokens counts the tokens used by a list of chat messages.
// OpenAI chat models carry per-message framing overhead; other models
// are counted over the joined contents.
func (v *Validator) CountChatTokens(messages []driven.ChatMessage, model string) (int, error) {
	if strings.HasPrefix(model, "gpt-3.5") || strings.HasPrefix(model, "gpt-4") {
		total := 0
		for _, msg := range messages {
			total += 3 // message framing
			for _, part := range []string{msg.Role, msg.Content} {
				n, err := v.count(model, part)
				if err != nil {
					return 0, err
				}
				total += n
			}
		}
		total += 3 // reply priming
		return total, nil
	}

	contents := make([]string, 0, len(messages))
	for _, msg := range messages {
		contents = append(contents, msg.Content)
	}
	return v.count(model, strings.Join(contents, " "))
}

// Validate ensures prompt tokens plus maxTokens stay within the
// model's context window. contextLimit overrides the built-in table
// when positive; an unknown model with no override is invalid input.
func (v *Validator) Validate(messages []driven.ChatMessage, model string, maxTokens, contextLimit int) error {
	limit := contextLimit
	if limit <= 0 {
		known, ok := modelContextLimits[model]
		if !ok {
			return fmt.Errorf("%w: unknown context length for model %q", domain.ErrInvalidInput, model)
		}
		limit = known
	}

	promptTokens, err := v.CountChatTokens(messages, model)
	if err != nil {
		return fmt.Errorf("count prompt tokens: %w", err)
	}

	total := promptTokens + maxTokens
	if total > limit {
		return fmt.Errorf("%w: %d prompt + %d completion = %d > %d",
			domain.ErrTokenLimitExceeded, promptTokens, maxTokens, total, limit)
	}
	return nil
}
