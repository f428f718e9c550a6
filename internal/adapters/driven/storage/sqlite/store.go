// Package sqlite implements the storage client on a local SQLite
// database. Vectors are stored as little-endian float32 blobs and
// compared with a registered vec_cosine scalar function, so similarity
// search runs inside SQL without a native extension.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	sqlite "modernc.org/sqlite"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
	"github.com/custodia-labs/ragdex/internal/vecmath"
)

var _ driven.StorageClient = (*Store)(nil)

// hybridOverFetch is how many vector candidates are pulled per
// requested hybrid result before lexical fusion.
const hybridOverFetch = 4

var identPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var registerOnce sync.Once

// registerFunctions registers vec_cosine with the driver. Must run
// before any connection executes a similarity query.
func registerFunctions() {
	registerOnce.Do(func() {
		_ = sqlite.RegisterDeterministicScalarFunction("vec_cosine", 2, vecCosineImpl)
	})
}

func vecCosineImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, err := blobArg(args[0])
	if err != nil {
		return nil, err
	}
	b, err := blobArg(args[1])
	if err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return nil, nil
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("vec_cosine: dimension mismatch %d vs %d", len(a), len(b))
	}
	return vecmath.CosineSimilarity(a, b), nil
}

func blobArg(arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytesToVector(v)
	default:
		return nil, fmt.Errorf("vec_cosine: want BLOB argument, got %T", arg)
	}
}

// Config holds configuration for the SQLite store.
type Config struct {
	// Path is the database file path. Parent directories are created.
	Path string
}

// Store is a StorageClient backed by one SQLite database file.
// Collections are tables created on demand and tracked in a
// ragdex_collections catalogue.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the database at cfg.Path.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: sqlite store needs a database path", domain.ErrInvalidInput)
	}
	registerFunctions()

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureCatalogue(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureCatalogue() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS ragdex_collections (
			name     TEXT PRIMARY KEY,
			kind     TEXT NOT NULL,
			model    TEXT NOT NULL DEFAULT '',
			dim      INTEGER NOT NULL DEFAULT 0,
			distance TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("create collections catalogue: %w", err)
	}
	return nil
}

// CreateDocumentCollection ensures the per-project document table
// exists and returns its name.
func (s *Store) CreateDocumentCollection(ctx context.Context, projectID string) (string, error) {
	name := domain.DocumentCollection(projectID)
	ident, err := quoteIdent(name)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			uuid     TEXT PRIMARY KEY,
			content  TEXT NOT NULL DEFAULT '',
			lang     TEXT NOT NULL DEFAULT '',
			tags     TEXT NOT NULL DEFAULT '[]',
			source   TEXT NOT NULL DEFAULT '{}',
			metadata TEXT NOT NULL DEFAULT '{}'
		)
	`, ident))
	if err != nil {
		return "", fmt.Errorf("create document collection %s: %w", name, err)
	}

	if err := s.catalogue(ctx, name, "documents", "", 0, ""); err != nil {
		return "", err
	}
	return name, nil
}

// CreateEmbeddingCollection ensures a vector table for the given model
// and dimensionality exists and returns its name.
func (s *Store) CreateEmbeddingCollection(ctx context.Context, projectID, model string, dim int, distance string) (string, error) {
	name := domain.EmbeddingCollection(projectID, model)
	ident, err := quoteIdent(name)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_uuid TEXT NOT NULL,
			chunk_id INTEGER NOT NULL,
			content  TEXT NOT NULL DEFAULT '',
			vector   BLOB
		)
	`, ident))
	if err != nil {
		return "", fmt.Errorf("create embedding collection %s: %w", name, err)
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON %s (doc_uuid)`,
		mustQuoteIdent("idx_"+name+"_doc_uuid"), ident))
	if err != nil {
		return "", fmt.Errorf("index embedding collection %s: %w", name, err)
	}

	if err := s.catalogue(ctx, name, "embedding", model, dim, distance); err != nil {
		return "", err
	}
	return name, nil
}

func (s *Store) catalogue(ctx context.Context, name, kind, model string, dim int, distance string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ragdex_collections (name, kind, model, dim, distance)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name) DO NOTHING
	`, name, kind, model, dim, distance)
	if err != nil {
		return fmt.Errorf("catalogue collection %s: %w", name, err)
	}
	return nil
}

// InsertDocuments writes document records into a collection.
func (s *Store) InsertDocuments(ctx context.Context, docs []*domain.Document, collection string) error {
	ident, err := quoteIdent(collection)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (uuid, content, lang, tags, source, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ident))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		tags, err := json.Marshal(doc.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags: %w", err)
		}
		source, err := json.Marshal(doc.Source)
		if err != nil {
			return fmt.Errorf("marshal source: %w", err)
		}
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}

		if _, err := stmt.ExecContext(ctx, doc.UUID, doc.Content, doc.Lang, string(tags), string(source), string(metadata)); err != nil {
			return fmt.Errorf("insert document %s: %w", doc.UUID, err)
		}
	}
	return tx.Commit()
}

// InsertChunks writes chunk embeddings into a vector collection.
func (s *Store) InsertChunks(ctx context.Context, rows []driven.ChunkRow, collection string) error {
	ident, err := quoteIdent(collection)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (doc_uuid, chunk_id, content, vector)
		VALUES (?, ?, ?, ?)
	`, ident))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.DocUUID, row.Chunk.ChunkID, row.Chunk.Content, vectorToBytes(row.Chunk.Vector)); err != nil {
			return fmt.Errorf("insert chunk %s/%d: %w", row.DocUUID, row.Chunk.ChunkID, err)
		}
	}
	return tx.Commit()
}

// DeleteByIDs removes every record whose field matches one of ids.
func (s *Store) DeleteByIDs(ctx context.Context, collection, field string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ident, err := quoteIdent(collection)
	if err != nil {
		return err
	}
	column, err := quoteIdent(field)
	if err != nil {
		return err
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)", ident, column, placeholders(len(ids)))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete from %s: %w", collection, err)
	}
	return nil
}

// AggregateTotalCount counts records matching the filter.
func (s *Store) AggregateTotalCount(ctx context.Context, collection string, filter driven.AggregateFilter) (int, error) {
	ident, err := quoteIdent(collection)
	if err != nil {
		return 0, err
	}
	column, err := quoteIdent(filter.Field)
	if err != nil {
		return 0, err
	}

	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", ident, column)
	if err := s.db.QueryRowContext(ctx, query, filter.Value).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return count, nil
}

// QueryByFilter fetches document records matching all filters.
func (s *Store) QueryByFilter(ctx context.Context, collection string, filters []domain.Filter) ([]*domain.Document, error) {
	ident, err := quoteIdent(collection)
	if err != nil {
		return nil, err
	}
	where, args, err := buildFilters(filters)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT uuid, content, lang, tags, source, metadata FROM %s%s", ident, where)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		var doc domain.Document
		var tags, source, metadata string
		if err := rows.Scan(&doc.UUID, &doc.Content, &doc.Lang, &tags, &source, &metadata); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &doc.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
		if err := json.Unmarshal([]byte(source), &doc.Source); err != nil {
			return nil, fmt.Errorf("unmarshal source: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// QueryByVector runs a pure vector similarity search, best first.
func (s *Store) QueryByVector(ctx context.Context, vector []float32, collection string, filters []domain.Filter, topK int) ([]domain.ScoredChunk, error) {
	ident, err := quoteIdent(collection)
	if err != nil {
		return nil, err
	}
	where, args, err := buildFilters(filters)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT doc_uuid, chunk_id, content, vec_cosine(vector, ?) AS score
		FROM %s%s
		ORDER BY score DESC
		LIMIT ?
	`, ident, where)

	queryArgs := append([]any{vectorToBytes(vector)}, args...)
	queryArgs = append(queryArgs, topK)

	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("vector query %s: %w", collection, err)
	}
	defer rows.Close()

	return scanScoredChunks(rows)
}

// HybridChunks runs a combined lexical and vector search. Vector
// candidates are over-fetched and rescored in Go as an even blend of
// cosine similarity and query-term frequency.
func (s *Store) HybridChunks(ctx context.Context, query string, vector []float32, collection string, limit int, filters []domain.Filter) ([]domain.ScoredChunk, error) {
	candidates, err := s.QueryByVector(ctx, vector, collection, filters, limit*hybridOverFetch)
	if err != nil {
		return nil, err
	}

	terms := strings.Fields(strings.ToLower(query))
	for i := range candidates {
		lexical := lexicalScore(terms, candidates[i].Chunk.Content)
		candidates[i].Score = 0.5*candidates[i].Score + 0.5*lexical
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// lexicalScore is the fraction of query terms present in the content.
func lexicalScore(terms []string, content string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	hits := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

func scanScoredChunks(rows *sql.Rows) ([]domain.ScoredChunk, error) {
	var chunks []domain.ScoredChunk
	for rows.Next() {
		var chunk domain.ScoredChunk
		var score sql.NullFloat64
		if err := rows.Scan(&chunk.DocUUID, &chunk.Chunk.ChunkID, &chunk.Chunk.Content, &score); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunk.Score = score.Float64
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// buildFilters renders a WHERE clause for the closed filter operator
// set. Field names must be plain identifiers.
func buildFilters(filters []domain.Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	var clauses []string
	var args []any
	for _, filter := range filters {
		column, err := quoteIdent(filter.Field)
		if err != nil {
			return "", nil, err
		}

		switch filter.Op {
		case domain.FilterEqual:
			clauses = append(clauses, fmt.Sprintf("%s = ?", column))
			args = append(args, filter.Value)
		case domain.FilterContainsAny:
			values, err := anySlice(filter.Value)
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", column, placeholders(len(values))))
			args = append(args, values...)
		default:
			return "", nil, fmt.Errorf("%w: filter op %q", domain.ErrUnsupportedType, filter.Op)
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func anySlice(value any) ([]any, error) {
	switch v := value.(type) {
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case []any:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: contains_any wants a slice, got %T", domain.ErrInvalidInput, value)
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// quoteIdent validates an identifier and wraps it in double quotes.
func quoteIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("%w: identifier %q", domain.ErrInvalidInput, name)
	}
	return `"` + name + `"`, nil
}

func mustQuoteIdent(name string) string {
	ident, err := quoteIdent(name)
	if err != nil {
		panic(err)
	}
	return ident
}

// vectorToBytes encodes a vector as a little-endian float32 blob.
func vectorToBytes(vector []float32) []byte {
	if vector == nil {
		return nil
	}
	buf := make([]byte, len(vector)*4)
	for i, f := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToVector decodes a little-endian float32 blob.
func bytesToVector(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d", len(data))
	}
	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vector, nil
}
