package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdex/internal/core/domain"
)

func writePayload(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadPayloadTextQuery(t *testing.T) {
	path := writePayload(t, `{
		"query": "what is the refund policy?",
		"modality_top_k": {"text": 5, "image": 2},
		"mode": "hybrid",
		"rerank": "text",
		"filters": [{"field": "lang", "op": "equal", "value": "en"}],
		"system_prompt": "Answer from the context only.",
		"history": [{"role": "user", "content": "hi"}],
		"params": {"max_tokens": 256, "temperature": 0.2}
	}`)

	payload, err := loadPayload(path)
	require.NoError(t, err)

	assert.Equal(t, "what is the refund policy?", payload.Query)
	assert.Equal(t, 5, payload.ModalityTopK["text"])
	assert.Equal(t, 2, payload.ModalityTopK["image"])
	assert.Equal(t, "hybrid", payload.Mode)
	assert.Equal(t, "text", payload.Rerank)
	assert.Equal(t, 256, payload.Params.MaxTokens)
	assert.Len(t, payload.History, 1)

	filters := payload.domainFilters()
	require.Len(t, filters, 1)
	assert.Equal(t, domain.Filter{Field: "lang", Op: domain.FilterEqual, Value: "en"}, filters[0])
}

func TestLoadPayloadImageQuery(t *testing.T) {
	path := writePayload(t, `{"image_path": "/tmp/query.png", "top_k": 3, "params": {}}`)

	payload, err := loadPayload(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/query.png", payload.ImagePath)
	assert.Equal(t, 3, payload.TopK)
}

func TestLoadPayloadRejectsAmbiguous(t *testing.T) {
	_, err := loadPayload(writePayload(t, `{"query": "q", "image_path": "/tmp/a.png"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = loadPayload(writePayload(t, `{}`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLoadPayloadRejectsBadJSON(t *testing.T) {
	_, err := loadPayload(writePayload(t, `{"query":`))
	assert.Error(t, err)
}

func TestRagCmdRejectsInvalidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
[rag.generation]
type = "bedrock"
model = "m"
`), 0600))
	payloadPath := writePayload(t, `{"query": "q"}`)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"rag", configPath, payloadPath, "proj"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestPrintSources(t *testing.T) {
	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)

	printSources(cmd, []domain.ScoredItem{
		{Modality: domain.ModalityText, Score: 0.91, Content: "refunds are processed in 14 days"},
		{Modality: domain.ModalityImage, Score: 0.52, Caption: "a refund form screenshot"},
	})

	out := buf.String()
	assert.Contains(t, out, "[1] (text, 0.91) refunds are processed in 14 days")
	assert.Contains(t, out, "[2] (image, 0.52) a refund form screenshot")
}

func TestPrintSourcesEmpty(t *testing.T) {
	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)

	printSources(cmd, nil)
	assert.Contains(t, buf.String(), "No context retrieved.")
}
