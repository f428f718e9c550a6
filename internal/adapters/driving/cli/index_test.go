package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdex/internal/config"
)

func TestSplitterConfig(t *testing.T) {
	cfg := &config.ChunkingConfig{
		ContentTypeToChunker: map[string]string{"text": "recursive_chunker"},
		Recursive:            config.ChunkerParams{ChunkSize: 800, ChunkOverlap: 80},
		Code:                 config.ChunkerParams{ChunkSize: 600, ChunkOverlap: 60},
	}

	got := splitterConfig(cfg)
	assert.Equal(t, "recursive_chunker", got.ContentTypeToChunker["text"])
	assert.Equal(t, 800, got.Recursive.ChunkSize)
	assert.Equal(t, 60, got.Code.ChunkOverlap)
}

func TestIndexCmdRejectsInvalidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
[indexing.storaging]
type = "dynamo"
`), 0600))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"index", t.TempDir(), configPath, "proj"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}
