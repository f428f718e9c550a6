package services

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
	"github.com/custodia-labs/ragdex/internal/logger"
)

const (
	// DefaultEmbedBatchSize is the number of chunk contents sent per
	// embedding call.
	DefaultEmbedBatchSize = 100

	// DefaultEmbedConcurrency bounds in-flight embedding batches per
	// service instance.
	DefaultEmbedConcurrency = 8
)

// EmbedderService attaches vectors to chunk groups, dispatching by
// document modality. The image embedder is optional; without it image
// documents fail and cross-modal query helpers are unavailable.
type EmbedderService struct {
	textEmbedder  driven.TextEmbedder
	imageEmbedder driven.ImageEmbedder
	batchSize     int
	sem           *semaphore.Weighted
}

// NewEmbedderService creates an embedder service. imageEmbedder may
// be nil; non-positive batchSize and concurrency use the defaults.
func NewEmbedderService(
	textEmbedder driven.TextEmbedder,
	imageEmbedder driven.ImageEmbedder,
	batchSize int,
	concurrency int64,
) *EmbedderService {
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	if concurrency <= 0 {
		concurrency = DefaultEmbedConcurrency
	}
	return &EmbedderService{
		textEmbedder:  textEmbedder,
		imageEmbedder: imageEmbedder,
		batchSize:     batchSize,
		sem:           semaphore.NewWeighted(concurrency),
	}
}

// TextModelName returns the text embedding model identity.
func (e *EmbedderService) TextModelName() string {
	return e.textEmbedder.ModelName()
}

// ImageModelName returns the image embedding model identity, or ""
// when no image embedder is configured.
func (e *EmbedderService) ImageModelName() string {
	if e.imageEmbedder == nil {
		return ""
	}
	return e.imageEmbedder.ModelName()
}

// HasImageEmbedder reports whether cross-modal operations are
// available.
func (e *EmbedderService) HasImageEmbedder() bool {
	return e.imageEmbedder != nil
}

// EmbedDocuments embeds every document concurrently. A failure in one
// document cancels the remaining work and surfaces that error.
func (e *EmbedderService) EmbedDocuments(ctx context.Context, docs []*domain.Document) error {
	logger.Info("Embedding %d documents", len(docs))

	g, ctx := errgroup.WithContext(ctx)
	for _, doc := range docs {
		g.Go(func() error {
			return e.embedOne(ctx, doc)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Finished embedding documents")
	return nil
}

// EmbedTextQuery embeds a query string with the text embedder.
func (e *EmbedderService) EmbedTextQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := e.textEmbedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed text query: %w", err)
	}
	return vectors[0], nil
}

// EmbedTextAsImage projects a query string into the image embedding
// space, enabling text-to-image search.
func (e *EmbedderService) EmbedTextAsImage(ctx context.Context, text string) ([]float32, error) {
	if e.imageEmbedder == nil {
		return nil, fmt.Errorf("%w: image embedder not configured", domain.ErrUnsupportedType)
	}
	vectors, err := e.imageEmbedder.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed text as image: %w", err)
	}
	return vectors[0], nil
}

// EmbedImageQuery embeds a single query image.
func (e *EmbedderService) EmbedImageQuery(ctx context.Context, image []byte) ([]float32, error) {
	if e.imageEmbedder == nil {
		return nil, fmt.Errorf("%w: image embedder not configured", domain.ErrUnsupportedType)
	}
	vectors, err := e.imageEmbedder.EmbedImages(ctx, [][]byte{image})
	if err != nil {
		return nil, fmt.Errorf("embed image query: %w", err)
	}
	return vectors[0], nil
}

func (e *EmbedderService) embedOne(ctx context.Context, doc *domain.Document) error {
	switch doc.Source.Modality() {
	case domain.ModalityImage:
		return e.embedImage(ctx, doc)
	case domain.ModalityText:
		return e.embedText(ctx, doc)
	default:
		return fmt.Errorf("%w: cannot embed modality %q for document %s",
			domain.ErrUnsupportedType, doc.Source.Modality(), doc.UUID)
	}
}

// embedImage produces the document's single image chunk group: one
// chunk, id 0, content set to the caption.
func (e *EmbedderService) embedImage(ctx context.Context, doc *domain.Document) error {
	if e.imageEmbedder == nil {
		return fmt.Errorf("%w: image embedder not configured", domain.ErrUnsupportedType)
	}
	if _, ok := doc.Group(domain.ModalityImage); ok {
		return fmt.Errorf("%w: image group already present on document %s",
			domain.ErrDuplicateChunkGroup, doc.UUID)
	}

	data, err := os.ReadFile(doc.Source.TmpURI)
	if err != nil {
		return fmt.Errorf("read image %s: %w", doc.Source.TmpURI, err)
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	vectors, err := e.imageEmbedder.EmbedImages(ctx, [][]byte{data})
	e.sem.Release(1)
	if err != nil {
		return fmt.Errorf("embed image document %s: %w", doc.UUID, err)
	}

	doc.ChunkGroups = append(doc.ChunkGroups, domain.ChunkGroup{
		EmbedderName: e.ImageModelName(),
		Modality:     domain.ModalityImage,
		Chunks: []domain.Chunk{{
			ChunkID: 0,
			Content: doc.Content,
			Vector:  vectors[0],
		}},
	})
	return nil
}

func (e *EmbedderService) embedText(ctx context.Context, doc *domain.Document) error {
	for i := range doc.ChunkGroups {
		group := &doc.ChunkGroups[i]
		if group.Modality != domain.ModalityText {
			continue
		}
		if len(group.Chunks) == 0 {
			logger.Warn("No text content to embed for document %s", doc.UUID)
			continue
		}

		contents := make([]string, len(group.Chunks))
		for j, chunk := range group.Chunks {
			contents[j] = chunk.Content
		}

		vectors, err := e.batchEmbedTexts(ctx, contents)
		if err != nil {
			return fmt.Errorf("embed document %s: %w", doc.UUID, err)
		}
		if len(vectors) != len(group.Chunks) {
			return fmt.Errorf("%w: document %s: %d embeddings for %d chunks",
				domain.ErrCountMismatch, doc.UUID, len(vectors), len(group.Chunks))
		}

		group.EmbedderName = e.TextModelName()
		for j := range group.Chunks {
			group.Chunks[j].Vector = vectors[j]
		}
	}
	return nil
}

// batchEmbedTexts splits contents into fixed-size batches, embeds
// them concurrently under the semaphore, and rejoins the vectors in
// input order.
func (e *EmbedderService) batchEmbedTexts(ctx context.Context, contents []string) ([][]float32, error) {
	type indexedBatch struct {
		start int
		texts []string
	}

	var batches []indexedBatch
	for start := 0; start < len(contents); start += e.batchSize {
		end := start + e.batchSize
		if end > len(contents) {
			end = len(contents)
		}
		batches = append(batches, indexedBatch{start: start, texts: contents[start:end]})
	}

	logger.Debug("Embedding %d chunks in %d batches", len(contents), len(batches))

	vectors := make([][]float32, len(contents))
	g, ctx := errgroup.WithContext(ctx)

	for _, batch := range batches {
		g.Go(func() error {
			if err := e.sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer e.sem.Release(1)

			result, err := e.textEmbedder.EmbedTexts(ctx, batch.texts)
			if err != nil {
				return err
			}
			if len(result) != len(batch.texts) {
				return fmt.Errorf("%w: %d embeddings for batch of %d",
					domain.ErrCountMismatch, len(result), len(batch.texts))
			}
			copy(vectors[batch.start:], result)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
