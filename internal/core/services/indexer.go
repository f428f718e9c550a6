package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
	"github.com/custodia-labs/ragdex/internal/logger"
)

// EmbeddingCollectionRef identifies one provisioned vector collection
// and the modality it serves.
type EmbeddingCollectionRef struct {
	Name     string
	Modality domain.Modality
	Model    string
}

// CollectionMap names the collections provisioned for one indexing
// batch.
type CollectionMap struct {
	Documents  string
	Embeddings []EmbeddingCollectionRef
}

// StorageIndexer performs the two-phase write: provision collections
// sized by the embeddings actually produced, then import with a
// post-insert consistency check and full rollback on any failure.
type StorageIndexer struct {
	storage    driven.StorageClient
	projectID  string
	textModel  string
	imageModel string
	distance   string
}

// NewStorageIndexer creates an indexer for one project. imageModel
// may be empty when no image embedder is configured; distance
// defaults to cosine.
func NewStorageIndexer(storage driven.StorageClient, projectID, textModel, imageModel, distance string) *StorageIndexer {
	if distance == "" {
		distance = "cosine"
	}
	return &StorageIndexer{
		storage:    storage,
		projectID:  projectID,
		textModel:  textModel,
		imageModel: imageModel,
		distance:   distance,
	}
}

// EnsureCollections provisions the document collection and one vector
// collection per modality that actually produced embeddings in this
// batch. The dimensionality is read from the first embedded chunk of
// each modality; a configured model with zero embedded chunks gets no
// collection in this call.
func (s *StorageIndexer) EnsureCollections(ctx context.Context, docs []*domain.Document) (CollectionMap, error) {
	docCollection, err := s.storage.CreateDocumentCollection(ctx, s.projectID)
	if err != nil {
		return CollectionMap{}, fmt.Errorf("create document collection: %w", err)
	}
	logger.Info("Ensured document collection %s", docCollection)

	cmap := CollectionMap{Documents: docCollection}

	for _, target := range []struct {
		modality domain.Modality
		model    string
	}{
		{domain.ModalityText, s.textModel},
		{domain.ModalityImage, s.imageModel},
	} {
		if target.model == "" {
			continue
		}
		dim := observedDim(docs, target.modality)
		if dim == 0 {
			continue
		}

		name, err := s.storage.CreateEmbeddingCollection(ctx, s.projectID, target.model, dim, s.distance)
		if err != nil {
			return CollectionMap{}, fmt.Errorf("create embedding collection for %s: %w", target.model, err)
		}
		cmap.Embeddings = append(cmap.Embeddings, EmbeddingCollectionRef{
			Name:     name,
			Modality: target.modality,
			Model:    target.model,
		})
		logger.Info("Ensured embedding collection %s (model=%s, dim=%d)", name, target.model, dim)
	}

	return cmap, nil
}

// ImportDocuments inserts documents and chunk embeddings, validates
// persisted counts, and rolls everything back on any failure. The
// original error is returned; rollback failures are logged only.
func (s *StorageIndexer) ImportDocuments(ctx context.Context, docs []*domain.Document, cmap CollectionMap) error {
	if err := s.importAll(ctx, docs, cmap); err != nil {
		logger.Error("Import failed, rolling back %d documents: %v", len(docs), err)
		s.rollback(ctx, docs, cmap)
		return err
	}
	return nil
}

func (s *StorageIndexer) importAll(ctx context.Context, docs []*domain.Document, cmap CollectionMap) error {
	if err := s.storage.InsertDocuments(ctx, docs, cmap.Documents); err != nil {
		return fmt.Errorf("insert documents: %w", err)
	}
	logger.Info("Imported %d documents into %s", len(docs), cmap.Documents)

	for _, ref := range cmap.Embeddings {
		rows := collectRows(docs, ref.Modality)
		if err := s.storage.InsertChunks(ctx, rows, ref.Name); err != nil {
			return fmt.Errorf("insert chunks into %s: %w", ref.Name, err)
		}
		logger.Info("Imported %d chunks into %s", len(rows), ref.Name)

		if err := s.validateChunks(ctx, docs, ref); err != nil {
			return err
		}
	}
	return nil
}

// validateChunks checks that every document's persisted chunk count
// in the collection equals what it contributed. Documents with no
// chunks of the collection's modality are skipped.
func (s *StorageIndexer) validateChunks(ctx context.Context, docs []*domain.Document, ref EmbeddingCollectionRef) error {
	for _, doc := range docs {
		expected := doc.ChunkCount(ref.Modality)
		if expected == 0 {
			continue
		}

		actual, err := s.storage.AggregateTotalCount(ctx, ref.Name, driven.AggregateFilter{
			Field: "doc_uuid",
			Value: doc.UUID,
		})
		if err != nil {
			return fmt.Errorf("count chunks for %s in %s: %w", doc.UUID, ref.Name, err)
		}
		if actual != expected {
			return fmt.Errorf("%w: document %s in %s: expected %d chunks, found %d",
				domain.ErrCountMismatch, doc.UUID, ref.Name, expected, actual)
		}
	}
	return nil
}

// rollback deletes the batch from every targeted collection,
// best-effort.
func (s *StorageIndexer) rollback(ctx context.Context, docs []*domain.Document, cmap CollectionMap) {
	uuids := make([]string, len(docs))
	for i, doc := range docs {
		uuids[i] = doc.UUID
	}

	if err := s.storage.DeleteByIDs(ctx, cmap.Documents, "uuid", uuids); err != nil {
		logger.Warn("Rollback of %s failed: %v", cmap.Documents, err)
	} else {
		logger.Info("Rolled back %d documents from %s", len(uuids), cmap.Documents)
	}

	for _, ref := range cmap.Embeddings {
		if err := s.storage.DeleteByIDs(ctx, ref.Name, "doc_uuid", uuids); err != nil {
			logger.Warn("Rollback of %s failed: %v", ref.Name, err)
		} else {
			logger.Info("Rolled back chunks from %s", ref.Name)
		}
	}
}

func collectRows(docs []*domain.Document, modality domain.Modality) []driven.ChunkRow {
	var rows []driven.ChunkRow
	for _, doc := range docs {
		group, ok := doc.Group(modality)
		if !ok {
			continue
		}
		for _, chunk := range group.Chunks {
			rows = append(rows, driven.ChunkRow{DocUUID: doc.UUID, Chunk: chunk})
		}
	}
	return rows
}

// observedDim returns the dimensionality of the first embedded chunk
// of the modality, or 0 when the batch holds none.
func observedDim(docs []*domain.Document, modality domain.Modality) int {
	for _, doc := range docs {
		group, ok := doc.Group(modality)
		if !ok {
			continue
		}
		for _, chunk := range group.Chunks {
			if len(chunk.Vector) > 0 {
				return len(chunk.Vector)
			}
		}
	}
	return 0
}
