package driven

import (
	"context"

	"github.com/custodia-labs/ragdex/internal/core/domain"
)

// SourceKind classifies a source string.
type SourceKind string

const (
	// KindRemoteRepo is a remote repository URL.
	KindRemoteRepo SourceKind = "remote-repo"

	// KindArchive is a local archive file.
	KindArchive SourceKind = "archive"

	// KindDirectory is a local directory.
	KindDirectory SourceKind = "directory"

	// KindFile is a single local file.
	KindFile SourceKind = "file"
)

// LoadResult is the outcome of one loader invocation.
type LoadResult struct {
	// Documents are ready-to-process documents.
	Documents []*domain.Document

	// NextSources are derived sources (e.g. an archive's extraction
	// directory) to be resolved again at the next recursion depth.
	NextSources []string
}

// Loader produces documents and derived sources from one source kind.
// Loaders are stateless with respect to the source and safe to reuse
// across calls.
type Loader interface {
	// Load expands the source. The filter is a glob pattern applied by
	// loaders that enumerate files; loaders without file enumeration
	// ignore it.
	Load(ctx context.Context, source, filter string) (LoadResult, error)
}

// LoaderFactory creates the loader for a classified source kind.
type LoaderFactory interface {
	Create(kind SourceKind) (Loader, error)
}

// ContentReader turns one local file into zero or more documents.
type ContentReader interface {
	Read(ctx context.Context, path string) ([]*domain.Document, error)
}
