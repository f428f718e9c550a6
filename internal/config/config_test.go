package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdex/internal/core/domain"
)

const fullConfig = `
[indexing.chunking]
content_type_to_chunker = { text = "recursive_chunker", markdown = "markdown_chunker", code = "code_chunker", json = "json_chunker" }

[indexing.chunking.recursive_chunker]
chunk_size = 800
chunk_overlap = 80

[indexing.chunking.markdown_chunker]
chunk_size = 800
chunk_overlap = 80

[indexing.chunking.code_chunker]
chunk_size = 600
chunk_overlap = 60

[indexing.chunking.json_chunker]
chunk_size = 800
chunk_overlap = 0

[indexing.embedding]
batch_size = 50

[indexing.embedding.text]
type = "ollama"
model = "nomic-embed-text"
normalize = true

[indexing.embedding.image]
type = "custom"
model = "clip-vit-b32"
input_size = 224

[indexing.transcribing]
type = "custom"
model = "whisper-small"

[indexing.captioning]
type = "custom"
model = "blip-base"

[indexing.storaging]
type = "sqlite"

[indexing.storaging.sqlite]
path = "/tmp/ragdex.db"

[indexing.asset_store]
type = "local"

[indexing.asset_store.local]
root_dir = "/tmp/assets"
overwrite = false

[rag.embedding.text]
type = "ollama"
model = "nomic-embed-text"

[rag.storaging]
type = "sqlite"

[rag.storaging.sqlite]
path = "/tmp/ragdex.db"

[rag.generation]
type = "ollama"
model = "llama3"
context_limit = 8192

[rag.reranking]
type = "custom"
model = "bge-reranker"
supported_modes = ["text", "image"]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadIndexing(t *testing.T) {
	cfg, err := LoadIndexing(writeConfig(t, fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "recursive_chunker", cfg.Chunking.ContentTypeToChunker["text"])
	assert.Equal(t, 800, cfg.Chunking.Recursive.ChunkSize)
	assert.Equal(t, 50, cfg.Embedding.BatchSize)
	assert.Equal(t, "ollama", cfg.Embedding.Text.Type)
	assert.True(t, cfg.Embedding.Text.Normalize)
	require.NotNil(t, cfg.Embedding.Image)
	assert.Equal(t, 224, cfg.Embedding.Image.InputSize)
	require.NotNil(t, cfg.Transcribing)
	assert.Equal(t, "whisper-small", cfg.Transcribing.Model)
	require.NotNil(t, cfg.Captioning)
	assert.Equal(t, StorageSQLite, cfg.Storaging.Type)
	require.NotNil(t, cfg.Storaging.SQLite)
	assert.Equal(t, "/tmp/ragdex.db", cfg.Storaging.SQLite.Path)
	require.NotNil(t, cfg.AssetStore)
	assert.Equal(t, "/tmp/assets", cfg.AssetStore.Local.RootDir)
}

func TestLoadRAG(t *testing.T) {
	cfg, err := LoadRAG(writeConfig(t, fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "llama3", cfg.Generation.Model)
	assert.Equal(t, 8192, cfg.Generation.ContextLimit)
	require.NotNil(t, cfg.Reranking)
	assert.Equal(t, []domain.RerankMode{domain.RerankText, domain.RerankImage}, cfg.Reranking.RerankModes())
}

func TestLoadIndexingMissingSection(t *testing.T) {
	_, err := LoadIndexing(writeConfig(t, `[rag.generation]
type = "ollama"
model = "llama3"
`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLoadRejectsBadTOML(t *testing.T) {
	_, err := Load(writeConfig(t, "[indexing\n"))
	assert.Error(t, err)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	bad := `
[indexing.chunking]
content_type_to_chunker = { text = "recursive_chunker" }

[indexing.chunking.recursive_chunker]
chunk_size = 800
chunk_overlap = 80

[indexing.embedding.text]
type = "sagemaker"
model = "m"

[indexing.storaging]
type = "sqlite"

[indexing.storaging.sqlite]
path = "/tmp/ragdex.db"
`
	_, err := LoadIndexing(writeConfig(t, bad))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestValidateStoragingSectionMismatch(t *testing.T) {
	bad := `
[indexing.chunking]
content_type_to_chunker = { text = "recursive_chunker" }

[indexing.chunking.recursive_chunker]
chunk_size = 800
chunk_overlap = 80

[indexing.embedding.text]
type = "ollama"
model = "nomic-embed-text"

[indexing.storaging]
type = "pgvector"
`
	_, err := LoadIndexing(writeConfig(t, bad))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "pgvector")
}

func TestValidateRejectsNegativeChunkSize(t *testing.T) {
	bad := `
[indexing.chunking]
content_type_to_chunker = { text = "recursive_chunker" }

[indexing.chunking.recursive_chunker]
chunk_size = -1
chunk_overlap = 0

[indexing.embedding.text]
type = "ollama"
model = "nomic-embed-text"

[indexing.storaging]
type = "sqlite"

[indexing.storaging.sqlite]
path = "/tmp/ragdex.db"
`
	_, err := LoadIndexing(writeConfig(t, bad))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
