package driven

import (
	"context"

	"github.com/custodia-labs/ragdex/internal/core/domain"
)

// AggregateFilter restricts an aggregate count to records whose field
// equals the value.
type AggregateFilter struct {
	Field string
	Value string
}

// ChunkRow is one chunk embedding prepared for insertion, tagged with
// its parent document id.
type ChunkRow struct {
	DocUUID string
	Chunk   domain.Chunk
}

// StorageClient is the opaque vector-store boundary. Collection
// lifecycle operations are idempotent ("create if absent"), but the
// existence check is not atomic against a concurrent creator in
// another process; callers must serialise collection-creation races.
//
// The underlying connection is established lazily and shared by all
// requests in the process.
type StorageClient interface {
	// CreateDocumentCollection ensures the per-project document
	// collection exists and returns its name.
	CreateDocumentCollection(ctx context.Context, projectID string) (string, error)

	// CreateEmbeddingCollection ensures a vector collection for the
	// given model and dimensionality exists and returns its name.
	// distance selects the similarity metric (only "cosine" is
	// guaranteed across backends).
	CreateEmbeddingCollection(ctx context.Context, projectID, model string, dim int, distance string) (string, error)

	// InsertDocuments writes document records into a collection.
	InsertDocuments(ctx context.Context, docs []*domain.Document, collection string) error

	// InsertChunks writes chunk embeddings into a vector collection.
	InsertChunks(ctx context.Context, rows []ChunkRow, collection string) error

	// DeleteByIDs removes every record whose field matches one of ids.
	DeleteByIDs(ctx context.Context, collection, field string, ids []string) error

	// AggregateTotalCount counts records matching the filter.
	AggregateTotalCount(ctx context.Context, collection string, filter AggregateFilter) (int, error)

	// QueryByFilter fetches document records matching all filters.
	QueryByFilter(ctx context.Context, collection string, filters []domain.Filter) ([]*domain.Document, error)

	// QueryByVector runs a pure vector similarity search.
	QueryByVector(ctx context.Context, vector []float32, collection string, filters []domain.Filter, topK int) ([]domain.ScoredChunk, error)

	// HybridChunks runs a combined lexical and vector search.
	HybridChunks(ctx context.Context, query string, vector []float32, collection string, limit int, filters []domain.Filter) ([]domain.ScoredChunk, error)

	// Close releases the connection.
	Close() error
}
