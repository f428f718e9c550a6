package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	model string
	calls [][]string
}

func (e *countingEmbedder) ModelName() string { return e.model }

func (e *countingEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.calls = append(e.calls, texts)
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text))}
	}
	return vectors, nil
}

func TestCachedTextEmbedderServesRepeats(t *testing.T) {
	inner := &countingEmbedder{model: "m"}
	cached := NewCachedText(inner, 10)

	first, err := cached.EmbedTexts(context.Background(), []string{"aa", "bbb"})
	require.NoError(t, err)
	require.Len(t, inner.calls, 1)

	second, err := cached.EmbedTexts(context.Background(), []string{"aa", "bbb"})
	require.NoError(t, err)
	assert.Len(t, inner.calls, 1, "repeat batch fully served from cache")
	assert.Equal(t, first, second)
}

func TestCachedTextEmbedderEmbedsOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{model: "m"}
	cached := NewCachedText(inner, 10)

	_, err := cached.EmbedTexts(context.Background(), []string{"aa"})
	require.NoError(t, err)

	out, err := cached.EmbedTexts(context.Background(), []string{"aa", "cccc"})
	require.NoError(t, err)
	require.Len(t, inner.calls, 2)
	assert.Equal(t, []string{"cccc"}, inner.calls[1])
	assert.Equal(t, []float32{2}, out[0])
	assert.Equal(t, []float32{4}, out[1])
}

func TestCachedTextEmbedderKeyedByModel(t *testing.T) {
	a := NewCachedText(&countingEmbedder{model: "a"}, 10)
	b := NewCachedText(&countingEmbedder{model: "b"}, 10)
	assert.NotEqual(t, a.key("same text"), b.key("same text"))
}
