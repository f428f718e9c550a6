package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdex/internal/core/domain"
)

func testItems() []domain.ScoredItem {
	return []domain.ScoredItem{
		{DocUUID: "a", Modality: domain.ModalityText, Content: "first", Score: 0.9},
		{DocUUID: "b", Modality: domain.ModalityText, Content: "second", Score: 0.8},
		{DocUUID: "img", Modality: domain.ModalityImage, Caption: "a cat", ImageBase64: "payload", Score: 0.7},
	}
}

func TestRerankerSupports(t *testing.T) {
	r := New(Config{Model: "m", SupportedModes: []domain.RerankMode{domain.RerankText}})
	assert.True(t, r.Supports(domain.RerankText))
	assert.False(t, r.Supports(domain.RerankImage))
}

func TestRerankerReorders(t *testing.T) {
	var got rerankRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rerank", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"results":[{"uuid":"a","score":0.1},{"uuid":"b","score":0.9},{"uuid":"img","score":0.5}]}`))
	}))
	defer srv.Close()

	r := New(Config{BaseURL: srv.URL, Model: "m", SupportedModes: []domain.RerankMode{domain.RerankText}})
	out, err := r.Process(context.Background(), "query", testItems())
	require.NoError(t, err)

	require.Len(t, got.Documents, 3)
	assert.Equal(t, "query", got.Query)
	assert.Equal(t, "first", *got.Documents[0].Text)
	assert.Nil(t, got.Documents[0].Caption)
	assert.Equal(t, "a cat", *got.Documents[2].Caption)
	assert.Equal(t, "payload", *got.Documents[2].Image)

	require.Len(t, out, 3)
	assert.Equal(t, []string{"b", "img", "a"}, []string{out[0].DocUUID, out[1].DocUUID, out[2].DocUUID})
	assert.Equal(t, 0.9, out[0].Score)
}

func TestRerankerSkipsUnloadedImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Documents, 1)
		assert.Equal(t, "a", req.Documents[0].UUID)
		_, _ = w.Write([]byte(`{"results":[{"uuid":"a","score":1.0}]}`))
	}))
	defer srv.Close()

	items := []domain.ScoredItem{
		{DocUUID: "a", Modality: domain.ModalityText, Content: "text"},
		{DocUUID: "img", Modality: domain.ModalityImage, Caption: "no payload"},
	}

	r := New(Config{BaseURL: srv.URL, Model: "m"})
	out, err := r.Process(context.Background(), "q", items)
	require.NoError(t, err)

	// The unloaded image stays in the result set with a zero score.
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].DocUUID)
	assert.Equal(t, 0.0, out[1].Score)
}

func TestRerankerDegradesOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such model", http.StatusBadRequest)
	}))
	defer srv.Close()

	items := testItems()
	r := New(Config{BaseURL: srv.URL, Model: "m"})
	out, err := r.Process(context.Background(), "q", items)
	require.NoError(t, err)
	assert.Equal(t, items, out, "original ordering kept on failure")
}
