package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
	"github.com/custodia-labs/ragdex/internal/logger"
)

// overFetchFactor requests more candidates than asked for, absorbing
// losses from reranking and join misses. The final per-modality
// truncation is authoritative.
const overFetchFactor = 3

// MultiModalRetriever answers text and image queries across the text
// and image vector collections of a project, joining chunk hits to
// their parent documents.
type MultiModalRetriever struct {
	embedder *EmbedderService
	storage  driven.StorageClient
	assets   *AssetReader
	reranker driven.Reranker
}

// NewMultiModalRetriever creates a retriever. assets and reranker may
// be nil; without assets image payloads stay unloaded, without a
// reranker results keep their storage scores.
func NewMultiModalRetriever(
	embedder *EmbedderService,
	storage driven.StorageClient,
	assets *AssetReader,
	reranker driven.Reranker,
) *MultiModalRetriever {
	return &MultiModalRetriever{
		embedder: embedder,
		storage:  storage,
		assets:   assets,
		reranker: reranker,
	}
}

// RetrieveByText answers a text query. The query is embedded once per
// configured embedding space; each modality with a positive budget is
// searched with a 3x over-fetch and the joined results are truncated
// per modality after optional reranking.
func (r *MultiModalRetriever) RetrieveByText(ctx context.Context, req domain.TextSearch) ([]domain.ScoredItem, error) {
	textVec, err := r.embedder.EmbedTextQuery(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	var imageVec []float32
	if r.embedder.HasImageEmbedder() {
		imageVec, err = r.embedder.EmbedTextAsImage(ctx, req.Query)
		if err != nil {
			return nil, err
		}
	}

	var hits []domain.ScoredChunk

	if budget := req.ModalityTopK[domain.ModalityText]; budget > 0 {
		collection := domain.EmbeddingCollection(req.ProjectID, r.embedder.TextModelName())
		found, err := r.searchChunks(ctx, req.Query, textVec, collection, budget*overFetchFactor, req.Filters, req.Mode)
		if err != nil {
			return nil, err
		}
		hits = append(hits, found...)
	}

	if budget := req.ModalityTopK[domain.ModalityImage]; budget > 0 && imageVec != nil {
		collection := domain.EmbeddingCollection(req.ProjectID, r.embedder.ImageModelName())
		found, err := r.searchChunks(ctx, req.Query, imageVec, collection, budget*overFetchFactor, req.Filters, req.Mode)
		if err != nil {
			return nil, err
		}
		hits = append(hits, found...)
	}

	items, err := r.join(ctx, req.ProjectID, hits)
	if err != nil {
		return nil, err
	}

	r.loadImages(ctx, items)

	if req.Rerank != "" && r.reranker != nil && r.reranker.Supports(req.Rerank) {
		items = r.rerank(ctx, req.Query, items)
	}

	return truncatePerModality(items, req.ModalityTopK), nil
}

// RetrieveByImage answers a query image against the image collection
// only. A supplied caption switches the search to hybrid mode with
// the caption as the lexical signal.
func (r *MultiModalRetriever) RetrieveByImage(ctx context.Context, req domain.ImageSearch) ([]domain.ScoredItem, error) {
	imageVec, err := r.embedder.EmbedImageQuery(ctx, req.Image)
	if err != nil {
		return nil, err
	}

	collection := domain.EmbeddingCollection(req.ProjectID, r.embedder.ImageModelName())
	limit := req.TopK * overFetchFactor

	mode := domain.SearchModeVector
	if req.Caption != "" {
		mode = domain.SearchModeHybrid
	}

	hits, err := r.searchChunks(ctx, req.Caption, imageVec, collection, limit, req.Filters, mode)
	if err != nil {
		return nil, err
	}

	items, err := r.join(ctx, req.ProjectID, hits)
	if err != nil {
		return nil, err
	}

	r.loadImages(ctx, items)

	if req.Rerank != "" && r.reranker != nil && r.reranker.Supports(domain.RerankImage) {
		items = r.rerank(ctx, req.Caption, items)
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if len(items) > req.TopK {
		items = items[:req.TopK]
	}
	return items, nil
}

func (r *MultiModalRetriever) searchChunks(
	ctx context.Context,
	query string,
	vector []float32,
	collection string,
	limit int,
	filters []domain.Filter,
	mode domain.SearchMode,
) ([]domain.ScoredChunk, error) {
	if mode == domain.SearchModeHybrid {
		hits, err := r.storage.HybridChunks(ctx, query, vector, collection, limit, filters)
		if err != nil {
			return nil, fmt.Errorf("hybrid search %s: %w", collection, err)
		}
		return hits, nil
	}
	hits, err := r.storage.QueryByVector(ctx, vector, collection, filters, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search %s: %w", collection, err)
	}
	return hits, nil
}

// join fetches all distinct parent documents in one batched filter
// query and merges each hit with its parent's metadata and asset
// location. Hits whose parent is missing are dropped. The item
// modality comes from the parent's parsed format, not the collection
// searched.
func (r *MultiModalRetriever) join(ctx context.Context, projectID string, hits []domain.ScoredChunk) ([]domain.ScoredItem, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(hits))
	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		if !seen[hit.DocUUID] {
			seen[hit.DocUUID] = true
			ids = append(ids, hit.DocUUID)
		}
	}

	docs, err := r.storage.QueryByFilter(ctx, domain.DocumentCollection(projectID), []domain.Filter{
		{Field: "uuid", Op: domain.FilterContainsAny, Value: ids},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch parent documents: %w", err)
	}

	docMap := make(map[string]*domain.Document, len(docs))
	for _, doc := range docs {
		docMap[doc.UUID] = doc
	}

	items := make([]domain.ScoredItem, 0, len(hits))
	for _, hit := range hits {
		doc, ok := docMap[hit.DocUUID]
		if !ok {
			logger.Warn("Dropping chunk hit with missing parent document %s", hit.DocUUID)
			continue
		}

		item := domain.ScoredItem{
			DocUUID:      hit.DocUUID,
			ChunkID:      hit.Chunk.ChunkID,
			Content:      hit.Chunk.Content,
			Modality:     doc.Source.Modality(),
			Score:        hit.Score,
			AssetStorage: doc.Source.StorageType,
			AssetURI:     doc.Source.AssetURI,
			Metadata:     doc.Metadata,
		}
		if item.Modality == domain.ModalityImage {
			item.Caption = doc.Content
		}
		items = append(items, item)
	}
	return items, nil
}

// loadImages batch-loads the image payload for image items holding
// only an asset reference. Load failures degrade to a missing
// payload.
func (r *MultiModalRetriever) loadImages(ctx context.Context, items []domain.ScoredItem) {
	if r.assets == nil {
		return
	}

	var indexes []int
	for i := range items {
		if items[i].Modality == domain.ModalityImage && items[i].ImageBase64 == "" && items[i].AssetURI != "" {
			indexes = append(indexes, i)
		}
	}
	if len(indexes) == 0 {
		return
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for _, i := range indexes {
		g.Go(func() error {
			payload := r.assets.ReadImageBase64(ctx, items[i].AssetStorage, items[i].AssetURI)
			mu.Lock()
			items[i].ImageBase64 = payload
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

// rerank lets the reranker reorder items; on failure the original
// ordering is kept.
func (r *MultiModalRetriever) rerank(ctx context.Context, query string, items []domain.ScoredItem) []domain.ScoredItem {
	reranked, err := r.reranker.Process(ctx, query, items)
	if err != nil {
		logger.Warn("Reranking failed, keeping original order: %v", err)
		return items
	}
	return reranked
}

// truncatePerModality partitions items by modality, sorts each
// partition by descending score, and cuts it to the requested budget.
func truncatePerModality(items []domain.ScoredItem, budgets map[domain.Modality]int) []domain.ScoredItem {
	byModality := make(map[domain.Modality][]domain.ScoredItem)
	for _, item := range items {
		byModality[item.Modality] = append(byModality[item.Modality], item)
	}

	var final []domain.ScoredItem
	for _, modality := range []domain.Modality{domain.ModalityText, domain.ModalityImage} {
		budget, ok := budgets[modality]
		if !ok || budget <= 0 {
			continue
		}
		partition := byModality[modality]
		sort.SliceStable(partition, func(i, j int) bool { return partition[i].Score > partition[j].Score })
		if len(partition) > budget {
			partition = partition[:budget]
		}
		final = append(final, partition...)
	}
	return final
}
