package driven

import (
	"context"

	"github.com/custodia-labs/ragdex/internal/core/domain"
)

// Reranker reorders retrieved items by relevance to the query. It owns
// scoring and ordering but must not change set membership.
type Reranker interface {
	// Supports reports whether the reranker handles the given mode.
	Supports(mode domain.RerankMode) bool

	// Process rescores and reorders items. On failure the caller keeps
	// the original ordering.
	Process(ctx context.Context, query string, items []domain.ScoredItem) ([]domain.ScoredItem, error)
}
