package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/logger"
)

// DefaultMaxDepth bounds recursive source expansion. The depth bound
// stands in for cycle detection: an archive chain deeper than this is
// rejected rather than tracked.
const DefaultMaxDepth = 10

// RecursiveLoader drives source expansion to a fixed depth: resolve a
// loader, load, accumulate documents, and recurse into every derived
// source. Document order across sources is not guaranteed.
type RecursiveLoader struct {
	resolver *SourceResolver
	maxDepth int
}

// NewRecursiveLoader creates a loader with the given depth bound
// (DefaultMaxDepth when non-positive).
func NewRecursiveLoader(resolver *SourceResolver, maxDepth int) *RecursiveLoader {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &RecursiveLoader{resolver: resolver, maxDepth: maxDepth}
}

// Load expands source fully and returns every document found.
func (l *RecursiveLoader) Load(ctx context.Context, source, filter string) ([]*domain.Document, error) {
	return l.load(ctx, source, filter, 0)
}

func (l *RecursiveLoader) load(ctx context.Context, source, filter string, depth int) ([]*domain.Document, error) {
	if depth > l.maxDepth {
		return nil, fmt.Errorf("%w: %s", domain.ErrMaxDepthExceeded, source)
	}

	loader, kind, err := l.resolver.Resolve(source)
	if err != nil {
		return nil, err
	}

	logger.Info("Loading %s source: %s", kind, source)

	result, err := loader.Load(ctx, source, filter)
	if err != nil {
		return nil, err
	}

	docs := result.Documents
	for _, next := range result.NextSources {
		sub, err := l.load(ctx, next, filter, depth+1)
		if err != nil {
			return nil, err
		}
		docs = append(docs, sub...)
	}

	return docs, nil
}
