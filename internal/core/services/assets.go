package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
	"github.com/custodia-labs/ragdex/internal/logger"
)

// DefaultAssetConcurrency bounds concurrent asset writes per writer
// instance.
const DefaultAssetConcurrency = 8

// AssetWriter persists staged source files into the asset store and
// records the resulting location on each document.
type AssetWriter struct {
	store driven.AssetStore
	sem   *semaphore.Weighted
}

// NewAssetWriter creates a writer (DefaultAssetConcurrency when
// concurrency is non-positive).
func NewAssetWriter(store driven.AssetStore, concurrency int64) *AssetWriter {
	if concurrency <= 0 {
		concurrency = DefaultAssetConcurrency
	}
	return &AssetWriter{store: store, sem: semaphore.NewWeighted(concurrency)}
}

// StoreDocuments persists every document's staged file. A document
// whose fingerprint is already stored keeps the existing object; any
// other failure aborts the batch.
func (w *AssetWriter) StoreDocuments(ctx context.Context, projectID string, docs []*domain.Document) error {
	logger.Info("Storing %d assets for project %s", len(docs), projectID)

	if err := w.store.EnsureStorage(ctx, projectID); err != nil {
		return fmt.Errorf("ensure asset storage: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, doc := range docs {
		g.Go(func() error {
			return w.storeOne(ctx, projectID, doc)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Assets stored")
	return nil
}

func (w *AssetWriter) storeOne(ctx context.Context, projectID string, doc *domain.Document) error {
	if doc.Source.TmpURI == "" {
		return fmt.Errorf("%w: document %s has no staging path", domain.ErrInvalidInput, doc.UUID)
	}
	if _, err := os.Stat(doc.Source.TmpURI); err != nil {
		return fmt.Errorf("staged file missing for document %s: %w", doc.UUID, err)
	}

	if err := w.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer w.sem.Release(1)

	uri, err := w.store.Store(ctx, projectID, doc.Source.TmpURI, doc.Metadata)
	if err != nil {
		// A duplicate fingerprint means the object is already stored;
		// reuse its URI.
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return fmt.Errorf("store asset for document %s: %w", doc.UUID, err)
		}
		logger.Debug("Asset for document %s already stored at %s", doc.UUID, uri)
	}

	doc.Source.AssetURI = uri
	doc.Source.StorageType = w.store.Type()
	return nil
}

// AssetReader resolves asset bytes across the configured store
// backends, keyed by the storage type recorded on documents.
type AssetReader struct {
	stores map[string]driven.AssetStore
}

// NewAssetReader creates a reader over the given stores.
func NewAssetReader(stores ...driven.AssetStore) *AssetReader {
	m := make(map[string]driven.AssetStore, len(stores))
	for _, store := range stores {
		m[store.Type()] = store
	}
	return &AssetReader{stores: m}
}

// Read fetches the object bytes behind a storage type and URI.
func (r *AssetReader) Read(ctx context.Context, storageType, uri string) ([]byte, error) {
	store, ok := r.stores[storageType]
	if !ok {
		return nil, fmt.Errorf("%w: no asset store for storage type %q", domain.ErrUnsupportedType, storageType)
	}
	return store.Read(ctx, uri)
}

// ReadImageBase64 fetches and base64-encodes an image asset. Failures
// degrade to "" so retrieval continues without the payload.
func (r *AssetReader) ReadImageBase64(ctx context.Context, storageType, uri string) string {
	data, err := r.Read(ctx, storageType, uri)
	if err != nil {
		logger.Warn("Failed to load image asset %s: %v", uri, err)
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}
