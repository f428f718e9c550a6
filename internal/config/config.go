// Package config loads and validates the TOML pipeline configuration.
// One file can carry the indexing section, the rag section, or both;
// each command validates only the section it needs.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/ragdex/internal/core/domain"
)

// Backend type discriminators accepted in the config file.
const (
	EmbedderOllama = "ollama"
	EmbedderOpenAI = "openai"
	EmbedderCustom = "custom"

	GeneratorOllama = "ollama"
	GeneratorOpenAI = "openai"

	StorageSQLite   = "sqlite"
	StoragePGVector = "pgvector"

	AssetStoreLocal = "local"
)

// ChunkerParams tunes a single splitting strategy. Zero values fall
// back to the splitter defaults.
type ChunkerParams struct {
	ChunkSize    int `toml:"chunk_size" validate:"gte=0"`
	ChunkOverlap int `toml:"chunk_overlap" validate:"gte=0"`
}

// ChunkingConfig maps content types to chunkers and carries the
// per-chunker parameters.
type ChunkingConfig struct {
	ContentTypeToChunker map[string]string `toml:"content_type_to_chunker" validate:"required,min=1"`

	Recursive ChunkerParams `toml:"recursive_chunker"`
	Markdown  ChunkerParams `toml:"markdown_chunker"`
	Code      ChunkerParams `toml:"code_chunker"`
	JSON      ChunkerParams `toml:"json_chunker"`
}

// TextEmbeddingConfig selects the text embedding backend.
type TextEmbeddingConfig struct {
	Type      string `toml:"type" validate:"oneof=ollama openai custom"`
	Model     string `toml:"model" validate:"required"`
	Normalize bool   `toml:"normalize"`
}

// ImageEmbeddingConfig selects the image embedding backend.
type ImageEmbeddingConfig struct {
	Type      string `toml:"type" validate:"oneof=custom"`
	Model     string `toml:"model" validate:"required"`
	InputSize int    `toml:"input_size" validate:"gte=0"`
}

// EmbeddingConfig groups the embedding backends. Image is optional;
// without it image documents are rejected at load time.
type EmbeddingConfig struct {
	Text      TextEmbeddingConfig   `toml:"text" validate:"required"`
	Image     *ImageEmbeddingConfig `toml:"image" validate:"omitempty"`
	BatchSize int                   `toml:"batch_size" validate:"gte=0"`
}

// SQLiteConfig configures the embedded sqlite backend.
type SQLiteConfig struct {
	Path string `toml:"path" validate:"required"`
}

// PGVectorConfig configures the PostgreSQL backend.
type PGVectorConfig struct {
	ConnString string `toml:"conn_string" validate:"required"`
}

// StoragingConfig selects the storage backend. Exactly the section
// matching Type must be present.
type StoragingConfig struct {
	Type     string          `toml:"type" validate:"oneof=sqlite pgvector"`
	SQLite   *SQLiteConfig   `toml:"sqlite" validate:"omitempty"`
	PGVector *PGVectorConfig `toml:"pgvector" validate:"omitempty"`
}

// LocalAssetConfig configures the filesystem asset store.
type LocalAssetConfig struct {
	RootDir   string `toml:"root_dir" validate:"required"`
	Overwrite bool   `toml:"overwrite"`
}

// AssetStoreConfig selects the asset store backend.
type AssetStoreConfig struct {
	Type  string            `toml:"type" validate:"oneof=local"`
	Local *LocalAssetConfig `toml:"local" validate:"omitempty"`
}

// TranscribingConfig selects the audio transcription backend.
type TranscribingConfig struct {
	Type  string `toml:"type" validate:"oneof=custom"`
	Model string `toml:"model" validate:"required"`
}

// CaptioningConfig selects the image captioning backend.
type CaptioningConfig struct {
	Type  string `toml:"type" validate:"oneof=custom"`
	Model string `toml:"model" validate:"required"`
}

// IndexingConfig is everything the index command needs.
type IndexingConfig struct {
	Chunking     ChunkingConfig      `toml:"chunking" validate:"required"`
	Embedding    EmbeddingConfig     `toml:"embedding" validate:"required"`
	Transcribing *TranscribingConfig `toml:"transcribing" validate:"omitempty"`
	Captioning   *CaptioningConfig   `toml:"captioning" validate:"omitempty"`
	Storaging    StoragingConfig     `toml:"storaging" validate:"required"`
	AssetStore   *AssetStoreConfig   `toml:"asset_store" validate:"omitempty"`
}

// RerankerConfig selects the reranking backend and the modalities it
// accepts.
type RerankerConfig struct {
	Type           string   `toml:"type" validate:"oneof=custom"`
	Model          string   `toml:"model" validate:"required"`
	SupportedModes []string `toml:"supported_modes" validate:"required,min=1,dive,oneof=text image"`
}

// GenerationConfig selects the answer generation backend.
type GenerationConfig struct {
	Type         string `toml:"type" validate:"oneof=openai ollama"`
	Model        string `toml:"model" validate:"required"`
	ContextLimit int    `toml:"context_limit" validate:"gte=0"`
}

// RAGConfig is everything the rag command needs. AssetStore is only
// needed when indexed image assets should be loaded for reranking.
type RAGConfig struct {
	Embedding  EmbeddingConfig   `toml:"embedding" validate:"required"`
	Storaging  StoragingConfig   `toml:"storaging" validate:"required"`
	Generation GenerationConfig  `toml:"generation" validate:"required"`
	Reranking  *RerankerConfig   `toml:"reranking" validate:"omitempty"`
	AssetStore *AssetStoreConfig `toml:"asset_store" validate:"omitempty"`
}

// File is the top-level config document.
type File struct {
	Indexing *IndexingConfig `toml:"indexing"`
	RAG      *RAGConfig      `toml:"rag"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads and decodes a config file without validating sections.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &f, nil
}

// LoadIndexing loads a config file and validates its indexing section.
func LoadIndexing(path string) (*IndexingConfig, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	if f.Indexing == nil {
		return nil, fmt.Errorf("%w: config has no [indexing] section", domain.ErrInvalidInput)
	}
	if err := ValidateIndexing(f.Indexing); err != nil {
		return nil, err
	}
	return f.Indexing, nil
}

// LoadRAG loads a config file and validates its rag section.
func LoadRAG(path string) (*RAGConfig, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	if f.RAG == nil {
		return nil, fmt.Errorf("%w: config has no [rag] section", domain.ErrInvalidInput)
	}
	if err := ValidateRAG(f.RAG); err != nil {
		return nil, err
	}
	return f.RAG, nil
}

// ValidateIndexing checks field constraints and the backend sections
// the type discriminators demand.
func ValidateIndexing(cfg *IndexingConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := checkStoraging(&cfg.Storaging); err != nil {
		return err
	}
	if cfg.AssetStore != nil && cfg.AssetStore.Type == AssetStoreLocal && cfg.AssetStore.Local == nil {
		return fmt.Errorf("%w: asset_store.type is local but [indexing.asset_store.local] is missing", domain.ErrInvalidInput)
	}
	return nil
}

// ValidateRAG checks field constraints and the backend sections the
// type discriminators demand.
func ValidateRAG(cfg *RAGConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return checkStoraging(&cfg.Storaging)
}

func checkStoraging(cfg *StoragingConfig) error {
	switch cfg.Type {
	case StorageSQLite:
		if cfg.SQLite == nil {
			return fmt.Errorf("%w: storaging.type is sqlite but [storaging.sqlite] is missing", domain.ErrInvalidInput)
		}
	case StoragePGVector:
		if cfg.PGVector == nil {
			return fmt.Errorf("%w: storaging.type is pgvector but [storaging.pgvector] is missing", domain.ErrInvalidInput)
		}
	}
	return nil
}

// RerankModes converts the configured mode names to domain values.
func (c *RerankerConfig) RerankModes() []domain.RerankMode {
	modes := make([]domain.RerankMode, 0, len(c.SupportedModes))
	for _, mode := range c.SupportedModes {
		modes = append(modes, domain.RerankMode(mode))
	}
	return modes
}
