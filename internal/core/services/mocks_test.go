package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
)

// fakeTextEmbedder returns deterministic vectors sized dim, counting
// calls.
type fakeTextEmbedder struct {
	mu    sync.Mutex
	model string
	dim   int
	err   error
	calls [][]string

	// short, when positive, returns that many vectors regardless of
	// input size.
	short int
}

var _ driven.TextEmbedder = (*fakeTextEmbedder)(nil)

func (f *fakeTextEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls = append(f.calls, texts)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	n := len(texts)
	if f.short > 0 {
		n = f.short
	}
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = make([]float32, f.dim)
		vectors[i][0] = float32(len(texts[i%len(texts)]))
	}
	return vectors, nil
}

func (f *fakeTextEmbedder) ModelName() string { return f.model }

type fakeImageEmbedder struct {
	model string
	dim   int
	err   error
}

var _ driven.ImageEmbedder = (*fakeImageEmbedder)(nil)

func (f *fakeImageEmbedder) EmbedImages(_ context.Context, images [][]byte) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(images))
	for i := range vectors {
		vectors[i] = make([]float32, f.dim)
	}
	return vectors, nil
}

func (f *fakeImageEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = make([]float32, f.dim)
	}
	return vectors, nil
}

func (f *fakeImageEmbedder) ModelName() string { return f.model }

// memStorage is an in-memory StorageClient good enough for pipeline
// and indexer tests.
type memStorage struct {
	mu          sync.Mutex
	collections map[string]bool
	docs        map[string][]*domain.Document      // collection -> docs
	chunks      map[string][]driven.ChunkRow       // collection -> rows
	vectorHits  map[string][]domain.ScoredChunk    // canned query results
	failInsert  map[string]error                   // collection -> error on chunk insert
	dims        map[string]int
}

var _ driven.StorageClient = (*memStorage)(nil)

func newMemStorage() *memStorage {
	return &memStorage{
		collections: make(map[string]bool),
		docs:        make(map[string][]*domain.Document),
		chunks:      make(map[string][]driven.ChunkRow),
		vectorHits:  make(map[string][]domain.ScoredChunk),
		failInsert:  make(map[string]error),
		dims:        make(map[string]int),
	}
}

func (m *memStorage) CreateDocumentCollection(_ context.Context, projectID string) (string, error) {
	name := domain.DocumentCollection(projectID)
	m.mu.Lock()
	m.collections[name] = true
	m.mu.Unlock()
	return name, nil
}

func (m *memStorage) CreateEmbeddingCollection(_ context.Context, projectID, model string, dim int, _ string) (string, error) {
	name := domain.EmbeddingCollection(projectID, model)
	m.mu.Lock()
	m.collections[name] = true
	m.dims[name] = dim
	m.mu.Unlock()
	return name, nil
}

func (m *memStorage) InsertDocuments(_ context.Context, docs []*domain.Document, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[collection] = append(m.docs[collection], docs...)
	return nil
}

func (m *memStorage) InsertChunks(_ context.Context, rows []driven.ChunkRow, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failInsert[collection]; err != nil {
		return err
	}
	m.chunks[collection] = append(m.chunks[collection], rows...)
	return nil
}

func (m *memStorage) DeleteByIDs(_ context.Context, collection, field string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	if field == "uuid" {
		var kept []*domain.Document
		for _, doc := range m.docs[collection] {
			if !drop[doc.UUID] {
				kept = append(kept, doc)
			}
		}
		m.docs[collection] = kept
		return nil
	}

	var kept []driven.ChunkRow
	for _, row := range m.chunks[collection] {
		if !drop[row.DocUUID] {
			kept = append(kept, row)
		}
	}
	m.chunks[collection] = kept
	return nil
}

func (m *memStorage) AggregateTotalCount(_ context.Context, collection string, filter driven.AggregateFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, row := range m.chunks[collection] {
		if row.DocUUID == filter.Value {
			count++
		}
	}
	return count, nil
}

func (m *memStorage) QueryByFilter(_ context.Context, collection string, filters []domain.Filter) ([]*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[string]bool)
	for _, f := range filters {
		if f.Field == "uuid" && f.Op == domain.FilterContainsAny {
			ids, ok := f.Value.([]string)
			if !ok {
				return nil, fmt.Errorf("unexpected filter value %T", f.Value)
			}
			for _, id := range ids {
				wanted[id] = true
			}
		}
	}

	var out []*domain.Document
	for _, doc := range m.docs[collection] {
		if wanted[doc.UUID] {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (m *memStorage) QueryByVector(_ context.Context, _ []float32, collection string, _ []domain.Filter, topK int) ([]domain.ScoredChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hits := m.vectorHits[collection]
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (m *memStorage) HybridChunks(_ context.Context, _ string, _ []float32, collection string, limit int, _ []domain.Filter) ([]domain.ScoredChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hits := m.vectorHits[collection]
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *memStorage) Close() error { return nil }

// fakeAssetStore records stored fingerprints per project.
type fakeAssetStore struct {
	mu      sync.Mutex
	stored  map[string]string // fingerprint -> uri
	payload map[string][]byte // uri -> bytes
	readErr error
}

var _ driven.AssetStore = (*fakeAssetStore)(nil)

func newFakeAssetStore() *fakeAssetStore {
	return &fakeAssetStore{
		stored:  make(map[string]string),
		payload: make(map[string][]byte),
	}
}

func (f *fakeAssetStore) Type() string { return "fake" }

func (f *fakeAssetStore) EnsureStorage(_ context.Context, _ string) error { return nil }

func (f *fakeAssetStore) Store(_ context.Context, projectID, tmpPath string, meta domain.FileMeta) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uri := "fake://" + projectID + "/" + meta.Fingerprint
	if _, ok := f.stored[meta.Fingerprint]; ok {
		return uri, domain.ErrAlreadyExists
	}
	f.stored[meta.Fingerprint] = uri
	return uri, nil
}

func (f *fakeAssetStore) Read(_ context.Context, uri string) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.payload[uri]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

// fakeReranker reverses the item order and marks scores.
type fakeReranker struct {
	supported domain.RerankMode
	err       error
}

var _ driven.Reranker = (*fakeReranker)(nil)

func (f *fakeReranker) Supports(mode domain.RerankMode) bool { return mode == f.supported }

func (f *fakeReranker) Process(_ context.Context, _ string, items []domain.ScoredItem) ([]domain.ScoredItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.ScoredItem, len(items))
	for i, item := range items {
		item.Score = float64(i + 1)
		out[len(items)-1-i] = item
	}
	return out, nil
}

// staticSplitter splits on a fixed separator for chunker tests.
type staticSplitter struct {
	size int
}

func (s *staticSplitter) Split(text string) []string {
	if len(text) <= s.size {
		if text == "" {
			return nil
		}
		return []string{text}
	}
	var parts []string
	for len(text) > s.size {
		parts = append(parts, text[:s.size])
		text = text[s.size:]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

type staticProvider struct {
	splitter driven.Splitter
	err      error
	formats  []string
}

var _ driven.SplitterProvider = (*staticProvider)(nil)

func (p *staticProvider) Get(format string) (driven.Splitter, error) {
	p.formats = append(p.formats, format)
	if p.err != nil {
		return nil, p.err
	}
	return p.splitter, nil
}

func textDoc(uuid, content string) *domain.Document {
	return &domain.Document{
		UUID:    uuid,
		Content: content,
		Source:  domain.SourceInfo{FileReader: "extension_based", ParsedFormat: "text"},
	}
}

func imageDoc(uuid, caption, tmpPath string) *domain.Document {
	return &domain.Document{
		UUID:    uuid,
		Content: caption,
		Source:  domain.SourceInfo{FileReader: "extension_based", ParsedFormat: "image", TmpURI: tmpPath},
	}
}
