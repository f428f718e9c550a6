package services

import (
	"context"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/logger"
	"github.com/custodia-labs/ragdex/internal/tempdir"
)

// IndexPipeline runs the full ingestion sequence for one source:
// load, persist assets, chunk, embed, provision collections, import.
// Scratch directories created during loading are removed when the run
// finishes, success or not.
type IndexPipeline struct {
	loader   *RecursiveLoader
	assets   *AssetWriter
	chunker  *ChunkerService
	embedder *EmbedderService
	indexer  *StorageIndexer
	tmp      *tempdir.Set
}

// NewIndexPipeline assembles a pipeline. assets may be nil when no
// asset store is configured; documents then carry no asset location.
func NewIndexPipeline(
	loader *RecursiveLoader,
	assets *AssetWriter,
	chunker *ChunkerService,
	embedder *EmbedderService,
	indexer *StorageIndexer,
	tmp *tempdir.Set,
) *IndexPipeline {
	return &IndexPipeline{
		loader:   loader,
		assets:   assets,
		chunker:  chunker,
		embedder: embedder,
		indexer:  indexer,
		tmp:      tmp,
	}
}

// Run indexes source into the project. A failure in any stage aborts
// the run; storage writes already made are rolled back by the import
// stage itself.
func (p *IndexPipeline) Run(ctx context.Context, projectID, source, filter string) error {
	defer p.tmp.RemoveAll()

	docs, err := p.loader.Load(ctx, source, filter)
	if err != nil {
		return err
	}
	logger.Info("Loaded %d documents from %s", len(docs), source)

	if len(docs) == 0 {
		logger.Warn("No documents found for source %s", source)
		return nil
	}

	if p.assets != nil {
		if err := p.assets.StoreDocuments(ctx, projectID, docs); err != nil {
			return err
		}
	}

	if err := p.chunker.ChunkDocuments(ctx, docs); err != nil {
		return err
	}

	if err := p.embedder.EmbedDocuments(ctx, docs); err != nil {
		return err
	}

	cmap, err := p.indexer.EnsureCollections(ctx, docs)
	if err != nil {
		return err
	}

	if err := p.indexer.ImportDocuments(ctx, docs, cmap); err != nil {
		return err
	}

	logger.Info("Indexed %d documents into project %s", len(docs), projectID)
	return nil
}

// ChunkTotals reports how many chunks the batch contributed per
// modality.
func ChunkTotals(docs []*domain.Document) map[domain.Modality]int {
	totals := make(map[domain.Modality]int)
	for _, doc := range docs {
		for _, group := range doc.ChunkGroups {
			totals[group.Modality] += len(group.Chunks)
		}
	}
	return totals
}
