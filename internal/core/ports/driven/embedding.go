package driven

import "context"

// TextEmbedder computes vector embeddings for text.
//
// Implementations are thin API clients (Ollama, OpenAI-compatible
// servers). They must retry transient network failures with bounded
// exponential backoff and surface non-transient failures immediately;
// callers never retry at this boundary.
type TextEmbedder interface {
	// EmbedTexts embeds a batch of texts, one vector per input in input
	// order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName returns the embedding model identity.
	ModelName() string
}

// ImageEmbedder computes vector embeddings for images, and for text
// projected into the same vector space (enabling text-to-image
// cross-modal search).
type ImageEmbedder interface {
	// EmbedImages embeds raw image bytes, one vector per input.
	EmbedImages(ctx context.Context, images [][]byte) ([][]float32, error)

	// EmbedTexts embeds texts into the image model's vector space.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName returns the embedding model identity.
	ModelName() string
}
