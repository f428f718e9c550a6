package services

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
	"github.com/custodia-labs/ragdex/internal/logger"
)

// DefaultBufferSize is the splitting window size in characters. Large
// documents are split window by window so peak memory stays bounded
// by the window, not the document.
const DefaultBufferSize = 250_000

// ChunkerService splits text documents into chunk groups. Image and
// blob documents carry no splittable text and pass through untouched;
// the embedding phase handles images.
type ChunkerService struct {
	provider   driven.SplitterProvider
	bufferSize int
}

// NewChunkerService creates a chunker (DefaultBufferSize when
// bufferSize is non-positive).
func NewChunkerService(provider driven.SplitterProvider, bufferSize int) *ChunkerService {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &ChunkerService{provider: provider, bufferSize: bufferSize}
}

// ChunkDocuments splits every text document in place. Documents are
// independent and chunked concurrently; splitter instances are shared
// read-only.
func (c *ChunkerService) ChunkDocuments(ctx context.Context, docs []*domain.Document) error {
	logger.Info("Chunking %d documents", len(docs))

	g, _ := errgroup.WithContext(ctx)
	for _, doc := range docs {
		if doc.Source.Modality() != domain.ModalityText {
			continue
		}
		g.Go(func() error {
			return c.chunkOne(doc)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Finished chunking documents")
	return nil
}

func (c *ChunkerService) chunkOne(doc *domain.Document) error {
	splitter, err := c.provider.Get(doc.Source.ParsedFormat)
	if err != nil {
		return err
	}

	chunks := c.bufferedSplit(doc.Content, splitter)
	doc.ChunkGroups = []domain.ChunkGroup{{
		Chunks:   chunks,
		Modality: domain.ModalityText,
	}}

	logger.Debug("Document %s chunked into %d chunks", doc.UUID, len(chunks))
	return nil
}

// bufferedSplit splits content window by window. The trailing chunk
// of each window is carried into the next one and re-split, so chunk
// boundaries do not align with window edges. Whitespace-only
// fragments are discarded and ids are dense and 0-based in emission
// order.
func (c *ChunkerService) bufferedSplit(content string, splitter driven.Splitter) []domain.Chunk {
	var pieces []string
	tail := ""

	for start := 0; start < len(content); start += c.bufferSize {
		end := start + c.bufferSize
		if end > len(content) {
			end = len(content)
		}

		part := tail + content[start:end]
		split := splitter.Split(part)
		if len(split) == 0 {
			tail = ""
			continue
		}

		tail = split[len(split)-1]
		for _, piece := range split[:len(split)-1] {
			if trimmed := strings.TrimSpace(piece); trimmed != "" {
				pieces = append(pieces, trimmed)
			}
		}
	}

	if trimmed := strings.TrimSpace(tail); trimmed != "" {
		pieces = append(pieces, trimmed)
	}

	chunks := make([]domain.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = domain.Chunk{ChunkID: i, Content: piece}
	}
	return chunks
}
