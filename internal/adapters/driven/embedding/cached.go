// Package embedding provides shared decorators over the embedder
// backends.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
)

// DefaultCacheSize is the default number of query embeddings kept in
// memory.
const DefaultCacheSize = 1000

var _ driven.TextEmbedder = (*CachedTextEmbedder)(nil)

// CachedTextEmbedder wraps a TextEmbedder with an LRU cache so
// repeated query embeddings skip the network round trip. Intended for
// the retrieval path; ingestion batches rarely repeat and bypass it.
type CachedTextEmbedder struct {
	inner driven.TextEmbedder
	cache *lru.Cache[string, []float32]
}

// NewCachedText wraps inner with a cache of the given size, or
// DefaultCacheSize when size is not positive.
func NewCachedText(inner driven.TextEmbedder, size int) *CachedTextEmbedder {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](size)
	return &CachedTextEmbedder{inner: inner, cache: cache}
}

// ModelName returns the wrapped embedder's model identity.
func (c *CachedTextEmbedder) ModelName() string {
	return c.inner.ModelName()
}

// EmbedTexts embeds a batch of texts, serving individual entries from
// the cache where possible and embedding only the misses.
func (c *CachedTextEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		if vec, ok := c.cache.Get(c.key(text)); ok {
			results[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	vectors, err := c.inner.EmbedTexts(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d inputs", len(vectors), len(missTexts))
	}

	for j, vec := range vectors {
		results[missIdx[j]] = vec
		c.cache.Add(c.key(missTexts[j]), vec)
	}
	return results, nil
}

// key hashes text together with the model identity so a model swap
// never serves stale vectors.
func (c *CachedTextEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + c.inner.ModelName()))
	return hex.EncodeToString(sum[:])
}
