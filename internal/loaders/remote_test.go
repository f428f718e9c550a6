package loaders

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	gh "github.com/google/go-github/v80/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdex/internal/tempdir"
)

func TestRemoteLoadSingleFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/contents/README.md", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		payload := base64.StdEncoding.EncodeToString([]byte("# Widgets\n"))
		fmt.Fprintf(w, `{"type":"file","encoding":"base64","name":"README.md","path":"README.md","content":%q}`, payload)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tmp := tempdir.NewSet()
	defer tmp.RemoveAll()

	loader := NewRemoteRepoLoader(tmp, 2)
	client := gh.NewClient(srv.Client())
	client.BaseURL, _ = url.Parse(srv.URL + "/")
	loader.client = client

	result, err := loader.Load(context.Background(), "https://github.com/acme/widgets/blob/main/README.md", "")
	require.NoError(t, err)
	require.Len(t, result.NextSources, 1)

	data, err := os.ReadFile(filepath.Join(result.NextSources[0], "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Widgets\n", string(data))
}

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		want    repoRef
		wantErr bool
	}{
		{
			name:   "ssh clone url",
			source: "git@github.com:acme/widgets.git",
			want:   repoRef{Owner: "acme", Repo: "widgets", Ref: "main", Path: ".", IsDir: true},
		},
		{
			name:   "https clone url",
			source: "https://github.com/acme/widgets.git",
			want:   repoRef{Owner: "acme", Repo: "widgets", Ref: "main", Path: ".", IsDir: true},
		},
		{
			name:   "bare web url",
			source: "https://github.com/acme/widgets",
			want:   repoRef{Owner: "acme", Repo: "widgets", Ref: "main", Path: ".", IsDir: true},
		},
		{
			name:   "tree url with branch and path",
			source: "https://github.com/acme/widgets/tree/develop/docs/guide",
			want:   repoRef{Owner: "acme", Repo: "widgets", Ref: "develop", Path: "docs/guide", IsDir: true},
		},
		{
			name:   "tree url branch only",
			source: "https://github.com/acme/widgets/tree/develop",
			want:   repoRef{Owner: "acme", Repo: "widgets", Ref: "develop", Path: ".", IsDir: true},
		},
		{
			name:   "blob url",
			source: "https://github.com/acme/widgets/blob/main/README.md",
			want:   repoRef{Owner: "acme", Repo: "widgets", Ref: "main", Path: "README.md", IsDir: false},
		},
		{
			name:    "ssh url missing repo",
			source:  "git@github.com:acme",
			wantErr: true,
		},
		{
			name:    "non-github host",
			source:  "https://gitlab.com/acme/widgets",
			wantErr: true,
		},
		{
			name:    "owner only",
			source:  "https://github.com/acme",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRepoURL(tt.source)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
