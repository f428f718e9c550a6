package preprocess

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptionerGenerateCaptions(t *testing.T) {
	var got captionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/caption", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(captionResponse{Caption: "a red square"})
	}))
	defer srv.Close()

	c := NewCaptioner(CaptionerConfig{BaseURL: srv.URL, Model: "blip"})
	captions, err := c.GenerateCaptions(context.Background(), [][]byte{[]byte("img")})
	require.NoError(t, err)

	assert.Equal(t, []string{"a red square"}, captions)
	assert.Equal(t, "blip", got.ModelName)
	assert.True(t, strings.HasPrefix(got.ImageBase64, "data:image/png;base64,"))
	raw := strings.TrimPrefix(got.ImageBase64, "data:image/png;base64,")
	decoded, err := base64.StdEncoding.DecodeString(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), decoded)
}

func TestCaptionerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewCaptioner(CaptionerConfig{BaseURL: srv.URL, Model: "blip"})
	_, err := c.GenerateCaptions(context.Background(), [][]byte{[]byte("img")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestTranscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transcribe", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper", r.FormValue("model_name"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "audio.wav", header.Filename)
		assert.Equal(t, "audio/wav", header.Header.Get("Content-Type"))

		_ = json.NewEncoder(w).Encode(transcribeResponse{Text: "hello world"})
	}))
	defer srv.Close()

	tr := NewTranscriber(TranscriberConfig{BaseURL: srv.URL, Model: "whisper"})
	text, err := tr.Transcribe(context.Background(), []byte("wav bytes"), "audio/wav")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestDataURIPassthrough(t *testing.T) {
	assert.Equal(t, "data:image/jpeg;base64,abc", dataURI("data:image/jpeg;base64,abc"))
	assert.Equal(t, "data:image/png;base64,abc", dataURI("abc"))
}
