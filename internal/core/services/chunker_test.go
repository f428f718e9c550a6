package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdex/internal/core/domain"
)

func TestChunkerSplitsTextDocuments(t *testing.T) {
	provider := &staticProvider{splitter: &staticSplitter{size: 10}}
	chunker := NewChunkerService(provider, 0)

	doc := textDoc("doc-1", strings.Repeat("abcde", 6))

	require.NoError(t, chunker.ChunkDocuments(context.Background(), []*domain.Document{doc}))

	require.Len(t, doc.ChunkGroups, 1)
	group := doc.ChunkGroups[0]
	assert.Equal(t, domain.ModalityText, group.Modality)
	require.NotEmpty(t, group.Chunks)

	// Dense 0-based ids in emission order.
	for i, chunk := range group.Chunks {
		assert.Equal(t, i, chunk.ChunkID)
		assert.NotEmpty(t, strings.TrimSpace(chunk.Content))
	}

	// Rejoining reproduces the content.
	var rejoined strings.Builder
	for _, chunk := range group.Chunks {
		rejoined.WriteString(chunk.Content)
	}
	assert.Equal(t, strings.Repeat("abcde", 6), rejoined.String())
}

func TestChunkerSkipsNonTextDocuments(t *testing.T) {
	provider := &staticProvider{splitter: &staticSplitter{size: 10}}
	chunker := NewChunkerService(provider, 0)

	img := imageDoc("img-1", "a caption", "/tmp/img.png")
	blob := &domain.Document{UUID: "blob-1", Source: domain.SourceInfo{ParsedFormat: "blob"}}

	require.NoError(t, chunker.ChunkDocuments(context.Background(), []*domain.Document{img, blob}))

	assert.Empty(t, img.ChunkGroups)
	assert.Empty(t, blob.ChunkGroups)
	assert.Empty(t, provider.formats)
}

func TestChunkerNoChunkerConfigured(t *testing.T) {
	provider := &staticProvider{err: domain.ErrNoChunkerConfigured}
	chunker := NewChunkerService(provider, 0)

	doc := textDoc("doc-1", "some content")

	err := chunker.ChunkDocuments(context.Background(), []*domain.Document{doc})
	assert.ErrorIs(t, err, domain.ErrNoChunkerConfigured)
}

func TestChunkerDiscardsWhitespaceOnlyContent(t *testing.T) {
	provider := &staticProvider{splitter: &staticSplitter{size: 10}}
	chunker := NewChunkerService(provider, 0)

	doc := textDoc("doc-1", "   \n\t ")

	require.NoError(t, chunker.ChunkDocuments(context.Background(), []*domain.Document{doc}))

	require.Len(t, doc.ChunkGroups, 1)
	assert.Empty(t, doc.ChunkGroups[0].Chunks)
}

func TestBufferedSplitWindowBoundary(t *testing.T) {
	provider := &staticProvider{splitter: &staticSplitter{size: 7}}

	// Window size 20: content at an exact multiple of the window must
	// split identically to one byte shorter, with no empty trailing
	// window artifact.
	chunker := NewChunkerService(provider, 20)

	exact := strings.Repeat("x", 40)
	shorter := strings.Repeat("x", 39)

	exactChunks := chunker.bufferedSplit(exact, &staticSplitter{size: 7})
	shorterChunks := chunker.bufferedSplit(shorter, &staticSplitter{size: 7})

	require.Len(t, exactChunks, len(shorterChunks))
	for _, chunk := range exactChunks {
		assert.NotEmpty(t, chunk.Content)
	}

	var total int
	for _, chunk := range exactChunks {
		total += len(chunk.Content)
	}
	assert.Equal(t, 40, total)
}

func TestBufferedSplitCarriesTailAcrossWindows(t *testing.T) {
	chunker := NewChunkerService(&staticProvider{}, 10)

	// Splitter that splits on spaces, keeping words whole: the word
	// "honeydew" straddles the 10-char window edge and must not be cut.
	content := "ab cd honeydew xy"
	chunks := chunker.bufferedSplit(content, wordSplitter{})

	var words []string
	for _, chunk := range chunks {
		words = append(words, chunk.Content)
	}
	assert.Contains(t, words, "honeydew")
}

// wordSplitter splits text into words.
type wordSplitter struct{}

func (wordSplitter) Split(text string) []string {
	return strings.Fields(text)
}
