package driven

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdex/internal/core/domain"
)

func TestChatMessages(t *testing.T) {
	req := GenerateRequest{
		Query:        "what colour is the square?",
		SystemPrompt: "Answer from the provided context.",
		Context: []domain.ScoredItem{
			{Modality: domain.ModalityText, Content: "The fence is blue."},
			{Modality: domain.ModalityImage, Caption: "a red square"},
			{Modality: domain.ModalityImage, Caption: ""},
		},
		History: []ChatMessage{
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi"},
		},
	}

	messages := req.ChatMessages()
	require.Len(t, messages, 6)

	assert.Equal(t, ChatMessage{Role: "system", Content: "Answer from the provided context."}, messages[0])
	assert.Equal(t, ChatMessage{Role: "system", Content: "The fence is blue."}, messages[1])
	assert.Equal(t, ChatMessage{Role: "system", Content: "Image: a red square"}, messages[2])
	assert.Equal(t, ChatMessage{Role: "user", Content: "hello"}, messages[3])
	assert.Equal(t, ChatMessage{Role: "assistant", Content: "hi"}, messages[4])
	assert.Equal(t, ChatMessage{Role: "user", Content: "what colour is the square?"}, messages[5])
}

func TestChatMessagesMinimal(t *testing.T) {
	messages := GenerateRequest{Query: "hi"}.ChatMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].Role)
}
