package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
)

// scriptedLoader returns canned results keyed by source.
type scriptedLoader struct {
	results map[string]driven.LoadResult
	errs    map[string]error
	calls   []string
}

var _ driven.Loader = (*scriptedLoader)(nil)

func (s *scriptedLoader) Load(_ context.Context, source, _ string) (driven.LoadResult, error) {
	s.calls = append(s.calls, source)
	if err := s.errs[source]; err != nil {
		return driven.LoadResult{}, err
	}
	return s.results[source], nil
}

type scriptedFactory struct {
	loaders map[driven.SourceKind]driven.Loader
	created []driven.SourceKind
}

var _ driven.LoaderFactory = (*scriptedFactory)(nil)

func (f *scriptedFactory) Create(kind driven.SourceKind) (driven.Loader, error) {
	f.created = append(f.created, kind)
	loader, ok := f.loaders[kind]
	if !ok {
		return nil, domain.ErrUnsupportedSource
	}
	return loader, nil
}

func TestClassifySource(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	archive := filepath.Join(dir, "bundle.zip")
	require.NoError(t, os.WriteFile(archive, []byte("x"), 0o644))

	tests := []struct {
		name    string
		source  string
		want    driven.SourceKind
		wantErr bool
	}{
		{name: "github https url", source: "https://github.com/acme/widgets", want: driven.KindRemoteRepo},
		{name: "github ssh url", source: "git@github.com:acme/widgets.git", want: driven.KindRemoteRepo},
		{name: "directory", source: dir, want: driven.KindDirectory},
		{name: "plain file", source: file, want: driven.KindFile},
		{name: "archive file", source: archive, want: driven.KindArchive},
		{name: "missing path", source: filepath.Join(dir, "absent"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := classifySource(tt.source)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrUnsupportedSource)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestResolverCachesLoaderPerKind(t *testing.T) {
	dir := t.TempDir()
	factory := &scriptedFactory{loaders: map[driven.SourceKind]driven.Loader{
		driven.KindDirectory: &scriptedLoader{},
	}}
	resolver := NewSourceResolver(factory)

	first, kind, err := resolver.Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, driven.KindDirectory, kind)

	second, _, err := resolver.Resolve(dir)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, factory.created, 1)
}

func TestRecursiveLoaderFollowsNextSources(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	loader := &scriptedLoader{results: map[string]driven.LoadResult{
		dir: {
			Documents:   []*domain.Document{textDoc("outer", "outer content")},
			NextSources: []string{sub},
		},
		sub: {
			Documents: []*domain.Document{textDoc("inner", "inner content")},
		},
	}}
	factory := &scriptedFactory{loaders: map[driven.SourceKind]driven.Loader{
		driven.KindDirectory: loader,
	}}

	recursive := NewRecursiveLoader(NewSourceResolver(factory), 0)

	docs, err := recursive.Load(context.Background(), dir, "**/*")
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, []string{dir, sub}, loader.calls)
}

func TestRecursiveLoaderMaxDepthNamesSource(t *testing.T) {
	dir := t.TempDir()
	deep := filepath.Join(dir, "deep")
	require.NoError(t, os.Mkdir(deep, 0o755))

	// dir yields deep, deep yields itself, forever.
	loader := &scriptedLoader{results: map[string]driven.LoadResult{
		dir:  {NextSources: []string{deep}},
		deep: {NextSources: []string{deep}},
	}}
	factory := &scriptedFactory{loaders: map[driven.SourceKind]driven.Loader{
		driven.KindDirectory: loader,
	}}

	recursive := NewRecursiveLoader(NewSourceResolver(factory), 2)

	_, err := recursive.Load(context.Background(), dir, "**/*")
	require.ErrorIs(t, err, domain.ErrMaxDepthExceeded)
	assert.Contains(t, err.Error(), deep)
}
