package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
)

// seedRetrieverStorage fills storage with parent documents and canned
// chunk hits: nText text candidates and nImage image candidates with
// descending scores.
func seedRetrieverStorage(storage *memStorage, project string, nText, nImage int) {
	textCollection := domain.EmbeddingCollection(project, "text-model")
	imageCollection := domain.EmbeddingCollection(project, "clip-model")
	docCollection := domain.DocumentCollection(project)

	for i := 0; i < nText; i++ {
		uuid := fmt.Sprintf("text-%d", i)
		doc := textDoc(uuid, "text content")
		storage.docs[docCollection] = append(storage.docs[docCollection], doc)
		storage.vectorHits[textCollection] = append(storage.vectorHits[textCollection], domain.ScoredChunk{
			DocUUID: uuid,
			Chunk:   domain.Chunk{ChunkID: 0, Content: fmt.Sprintf("text chunk %d", i)},
			Score:   1.0 - float64(i)*0.1,
		})
	}

	for i := 0; i < nImage; i++ {
		uuid := fmt.Sprintf("image-%d", i)
		doc := imageDoc(uuid, fmt.Sprintf("caption %d", i), "")
		doc.Source.StorageType = "fake"
		doc.Source.AssetURI = fmt.Sprintf("fake://%s/img-%d", project, i)
		storage.docs[docCollection] = append(storage.docs[docCollection], doc)
		storage.vectorHits[imageCollection] = append(storage.vectorHits[imageCollection], domain.ScoredChunk{
			DocUUID: uuid,
			Chunk:   domain.Chunk{ChunkID: 0, Content: fmt.Sprintf("caption %d", i)},
			Score:   0.9 - float64(i)*0.1,
		})
	}
}

func newTestRetriever(storage *memStorage, assets *AssetReader, reranker *fakeReranker) *MultiModalRetriever {
	embedder := NewEmbedderService(
		&fakeTextEmbedder{model: "text-model", dim: 4},
		&fakeImageEmbedder{model: "clip-model", dim: 8},
		0, 0,
	)
	var rr driven.Reranker
	if reranker != nil {
		rr = reranker
	}
	return NewMultiModalRetriever(embedder, storage, assets, rr)
}

func TestRetrieveByTextPerModalityTruncation(t *testing.T) {
	storage := newMemStorage()
	seedRetrieverStorage(storage, "proj", 5, 3)

	retriever := newTestRetriever(storage, nil, nil)

	items, err := retriever.RetrieveByText(context.Background(), domain.TextSearch{
		Query:     "find things",
		ProjectID: "proj",
		ModalityTopK: map[domain.Modality]int{
			domain.ModalityText:  2,
			domain.ModalityImage: 1,
		},
		Mode: domain.SearchModeVector,
	})
	require.NoError(t, err)

	var texts, images []domain.ScoredItem
	for _, item := range items {
		switch item.Modality {
		case domain.ModalityText:
			texts = append(texts, item)
		case domain.ModalityImage:
			images = append(images, item)
		}
	}

	require.Len(t, texts, 2)
	require.Len(t, images, 1)

	// Sorted by descending score within each modality.
	assert.GreaterOrEqual(t, texts[0].Score, texts[1].Score)
	assert.Equal(t, "text-0", texts[0].DocUUID)
	assert.Equal(t, "image-0", images[0].DocUUID)
}

func TestRetrieveByTextJoinsParentMetadata(t *testing.T) {
	storage := newMemStorage()
	seedRetrieverStorage(storage, "proj", 1, 1)

	retriever := newTestRetriever(storage, nil, nil)

	items, err := retriever.RetrieveByText(context.Background(), domain.TextSearch{
		Query:        "q",
		ProjectID:    "proj",
		ModalityTopK: map[domain.Modality]int{domain.ModalityText: 1, domain.ModalityImage: 1},
		Mode:         domain.SearchModeVector,
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	for _, item := range items {
		if item.Modality == domain.ModalityImage {
			assert.Equal(t, "caption 0", item.Caption)
			assert.Equal(t, "fake", item.AssetStorage)
			assert.NotEmpty(t, item.AssetURI)
		}
	}
}

func TestRetrieveByTextDropsOrphanHits(t *testing.T) {
	storage := newMemStorage()
	seedRetrieverStorage(storage, "proj", 1, 0)

	// A hit whose parent document does not exist.
	textCollection := domain.EmbeddingCollection("proj", "text-model")
	storage.vectorHits[textCollection] = append(storage.vectorHits[textCollection], domain.ScoredChunk{
		DocUUID: "ghost",
		Chunk:   domain.Chunk{ChunkID: 0, Content: "orphan"},
		Score:   0.99,
	})

	retriever := newTestRetriever(storage, nil, nil)

	items, err := retriever.RetrieveByText(context.Background(), domain.TextSearch{
		Query:        "q",
		ProjectID:    "proj",
		ModalityTopK: map[domain.Modality]int{domain.ModalityText: 5},
		Mode:         domain.SearchModeVector,
	})
	require.NoError(t, err)

	for _, item := range items {
		assert.NotEqual(t, "ghost", item.DocUUID)
	}
}

func TestRetrieveByTextLoadsImagePayloads(t *testing.T) {
	storage := newMemStorage()
	seedRetrieverStorage(storage, "proj", 0, 1)

	store := newFakeAssetStore()
	store.payload["fake://proj/img-0"] = []byte("png")
	assets := NewAssetReader(store)

	retriever := newTestRetriever(storage, assets, nil)

	items, err := retriever.RetrieveByText(context.Background(), domain.TextSearch{
		Query:        "q",
		ProjectID:    "proj",
		ModalityTopK: map[domain.Modality]int{domain.ModalityImage: 1},
		Mode:         domain.SearchModeVector,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].ImageBase64)
}

func TestRetrieveByTextRerank(t *testing.T) {
	storage := newMemStorage()
	seedRetrieverStorage(storage, "proj", 3, 0)

	reranker := &fakeReranker{supported: domain.RerankText}
	retriever := newTestRetriever(storage, nil, reranker)

	items, err := retriever.RetrieveByText(context.Background(), domain.TextSearch{
		Query:        "q",
		ProjectID:    "proj",
		ModalityTopK: map[domain.Modality]int{domain.ModalityText: 3},
		Mode:         domain.SearchModeVector,
		Rerank:       domain.RerankText,
	})
	require.NoError(t, err)
	require.Len(t, items, 3)

	// The fake reranker reverses order and rescores; the final sort is
	// by the reranker's scores.
	assert.Equal(t, "text-2", items[0].DocUUID)
}

func TestRetrieveByImage(t *testing.T) {
	storage := newMemStorage()
	seedRetrieverStorage(storage, "proj", 0, 3)

	retriever := newTestRetriever(storage, nil, nil)

	items, err := retriever.RetrieveByImage(context.Background(), domain.ImageSearch{
		Image:     []byte("query image"),
		ProjectID: "proj",
		TopK:      2,
	})
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "image-0", items[0].DocUUID)
	assert.GreaterOrEqual(t, items[0].Score, items[1].Score)
}
