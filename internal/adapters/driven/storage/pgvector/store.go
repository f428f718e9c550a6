// Package pgvector implements the storage client on PostgreSQL with
// the pgvector extension. Similarity uses the <=> cosine-distance
// operator; hybrid search blends it with full-text rank in SQL.
package pgvector

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
)

var _ driven.StorageClient = (*Store)(nil)

var identPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Config holds configuration for the PostgreSQL store.
type Config struct {
	// ConnString is a pgx connection string or URL.
	ConnString string
}

// Store is a StorageClient backed by a pgx connection pool.
// Collections are tables created on demand.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to PostgreSQL, verifies connectivity and ensures
// the vector extension is installed.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ConnString == "" {
		return nil, fmt.Errorf("%w: pgvector store needs a connection string", domain.ErrInvalidInput)
	}

	pool, err := pgxpool.New(ctx, cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure vector extension: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
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

	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			uuid     TEXT PRIMARY KEY,
			content  TEXT NOT NULL DEFAULT '',
			lang     TEXT NOT NULL DEFAULT '',
			tags     JSONB NOT NULL DEFAULT '[]',
			source   JSONB NOT NULL DEFAULT '{}',
			metadata JSONB NOT NULL DEFAULT '{}'
		)
	`, ident))
	if err != nil {
		return "", fmt.Errorf("create document collection %s: %w", name, err)
	}
	return name, nil
}

// CreateEmbeddingCollection ensures a vector table for the given model
// and dimensionality exists and returns its name. Only cosine distance
// is supported.
func (s *Store) CreateEmbeddingCollection(ctx context.Context, projectID, model string, dim int, distance string) (string, error) {
	if distance != "" && distance != "cosine" {
		return "", fmt.Errorf("%w: distance metric %q", domain.ErrUnsupportedType, distance)
	}

	name := domain.EmbeddingCollection(projectID, model)
	ident, err := quoteIdent(name)
	if err != nil {
		return "", err
	}

	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id       BIGSERIAL PRIMARY KEY,
			doc_uuid TEXT NOT NULL,
			chunk_id INTEGER NOT NULL,
			content  TEXT NOT NULL DEFAULT '',
			embedding vector(%d)
		)
	`, ident, dim))
	if err != nil {
		return "", fmt.Errorf("create embedding collection %s: %w", name, err)
	}

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
			mustQuoteIdent("idx_"+name+"_embedding"), ident),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (doc_uuid)`,
			mustQuoteIdent("idx_"+name+"_doc_uuid"), ident),
	}
	for _, stmt := range indexes {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return "", fmt.Errorf("index embedding collection %s: %w", name, err)
		}
	}
	return name, nil
}

// InsertDocuments writes document records into a collection.
func (s *Store) InsertDocuments(ctx context.Context, docs []*domain.Document, collection string) error {
	ident, err := quoteIdent(collection)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (uuid, content, lang, tags, source, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ident)

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

		if _, err := s.pool.Exec(ctx, query, doc.UUID, doc.Content, doc.Lang, tags, source, metadata); err != nil {
			return fmt.Errorf("insert document %s: %w", doc.UUID, err)
		}
	}
	return nil
}

// InsertChunks writes chunk embeddings into a vector collection.
func (s *Store) InsertChunks(ctx context.Context, rows []driven.ChunkRow, collection string) error {
	ident, err := quoteIdent(collection)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (doc_uuid, chunk_id, content, embedding)
		VALUES ($1, $2, $3, $4)
	`, ident)

	for _, row := range rows {
		if _, err := s.pool.Exec(ctx, query, row.DocUUID, row.Chunk.ChunkID, row.Chunk.Content, pgv.NewVector(row.Chunk.Vector)); err != nil {
			return fmt.Errorf("insert chunk %s/%d: %w", row.DocUUID, row.Chunk.ChunkID, err)
		}
	}
	return nil
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

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ANY($1)", ident, column)
	if _, err := s.pool.Exec(ctx, query, ids); err != nil {
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
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1", ident, column)
	if err := s.pool.QueryRow(ctx, query, filter.Value).Scan(&count); err != nil {
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
	where, args, err := buildFilters(filters, 1)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT uuid, content, lang, tags, source, metadata FROM %s%s", ident, where)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		var doc domain.Document
		var tags, source, metadata []byte
		if err := rows.Scan(&doc.UUID, &doc.Content, &doc.Lang, &tags, &source, &metadata); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if err := json.Unmarshal(tags, &doc.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
		if err := json.Unmarshal(source, &doc.Source); err != nil {
			return nil, fmt.Errorf("unmarshal source: %w", err)
		}
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
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
	where, args, err := buildFilters(filters, 3)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT doc_uuid, chunk_id, content, 1 - (embedding <=> $1) AS score
		FROM %s%s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, ident, where)

	queryArgs := append([]any{pgv.NewVector(vector), topK}, args...)
	rows, err := s.pool.Query(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("vector query %s: %w", collection, err)
	}
	defer rows.Close()

	return scanScoredChunks(rows)
}

// HybridChunks runs a combined lexical and vector search: an even
// blend of cosine similarity and full-text rank over the content.
func (s *Store) HybridChunks(ctx context.Context, query string, vector []float32, collection string, limit int, filters []domain.Filter) ([]domain.ScoredChunk, error) {
	ident, err := quoteIdent(collection)
	if err != nil {
		return nil, err
	}
	where, args, err := buildFilters(filters, 4)
	if err != nil {
		return nil, err
	}

	sqlQuery := fmt.Sprintf(`
		SELECT doc_uuid, chunk_id, content,
		       0.5 * (1 - (embedding <=> $1))
		     + 0.5 * ts_rank_cd(to_tsvector('simple', content), plainto_tsquery('simple', $2)) AS score
		FROM %s%s
		ORDER BY score DESC
		LIMIT $3
	`, ident, where)

	queryArgs := append([]any{pgv.NewVector(vector), query, limit}, args...)
	rows, err := s.pool.Query(ctx, sqlQuery, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("hybrid query %s: %w", collection, err)
	}
	defer rows.Close()

	return scanScoredChunks(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanScoredChunks(rows pgxRows) ([]domain.ScoredChunk, error) {
	var chunks []domain.ScoredChunk
	for rows.Next() {
		var chunk domain.ScoredChunk
		if err := rows.Scan(&chunk.DocUUID, &chunk.Chunk.ChunkID, &chunk.Chunk.Content, &chunk.Score); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// buildFilters renders a WHERE clause with placeholders starting at
// the given ordinal. Field names must be plain identifiers.
func buildFilters(filters []domain.Filter, firstArg int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	var clauses []string
	var args []any
	ordinal := firstArg
	for _, filter := range filters {
		column, err := quoteIdent(filter.Field)
		if err != nil {
			return "", nil, err
		}

		switch filter.Op {
		case domain.FilterEqual:
			clauses = append(clauses, fmt.Sprintf("%s = $%d", column, ordinal))
			args = append(args, filter.Value)
			ordinal++
		case domain.FilterContainsAny:
			values, err := stringSlice(filter.Value)
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, fmt.Sprintf("%s = ANY($%d)", column, ordinal))
			args = append(args, values)
			ordinal++
		default:
			return "", nil, fmt.Errorf("%w: filter op %q", domain.ErrUnsupportedType, filter.Op)
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func stringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: contains_any wants strings, got %T", domain.ErrInvalidInput, item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: contains_any wants a slice, got %T", domain.ErrInvalidInput, value)
	}
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
