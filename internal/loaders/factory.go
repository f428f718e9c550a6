package loaders

import (
	"fmt"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
	"github.com/custodia-labs/ragdex/internal/tempdir"
)

// Factory builds loaders by source kind. All loaders created by one
// factory share its reader and scratch directory set, so one pipeline
// invocation cleans up exactly its own staging areas.
type Factory struct {
	reader driven.ContentReader
	tmp    *tempdir.Set

	// ReadConcurrency and FetchConcurrency override the per-loader
	// defaults when positive.
	ReadConcurrency  int64
	FetchConcurrency int64
}

var _ driven.LoaderFactory = (*Factory)(nil)

// NewFactory returns a Factory over reader and tmp.
func NewFactory(reader driven.ContentReader, tmp *tempdir.Set) *Factory {
	return &Factory{reader: reader, tmp: tmp}
}

// Create returns the loader for kind.
func (f *Factory) Create(kind driven.SourceKind) (driven.Loader, error) {
	switch kind {
	case driven.KindRemoteRepo:
		return NewRemoteRepoLoader(f.tmp, f.FetchConcurrency), nil
	case driven.KindArchive:
		return NewArchiveLoader(f.tmp), nil
	case driven.KindDirectory, driven.KindFile:
		return NewDirectoryLoader(f.reader, f.ReadConcurrency), nil
	default:
		return nil, fmt.Errorf("%w: no loader for source kind %q", domain.ErrUnsupportedSource, kind)
	}
}
