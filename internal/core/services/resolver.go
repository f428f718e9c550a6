package services

import (
	"fmt"
	"os"
	"sync"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
	"github.com/custodia-labs/ragdex/internal/logger"
)

// SourceResolver classifies source strings and hands out the matching
// loader. Loaders are created once per kind and reused, so all
// sources of one kind share a loader's concurrency gates.
type SourceResolver struct {
	factory driven.LoaderFactory

	mu    sync.Mutex
	cache map[driven.SourceKind]driven.Loader
}

// NewSourceResolver creates a resolver over the given factory.
func NewSourceResolver(factory driven.LoaderFactory) *SourceResolver {
	return &SourceResolver{
		factory: factory,
		cache:   make(map[driven.SourceKind]driven.Loader),
	}
}

// Resolve classifies source and returns its loader.
func (r *SourceResolver) Resolve(source string) (driven.Loader, driven.SourceKind, error) {
	kind, err := classifySource(source)
	if err != nil {
		return nil, "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if loader, ok := r.cache[kind]; ok {
		return loader, kind, nil
	}

	loader, err := r.factory.Create(kind)
	if err != nil {
		return nil, "", err
	}
	r.cache[kind] = loader

	logger.Debug("Resolved source %s as %s", source, kind)
	return loader, kind, nil
}

// classifySource checks the remote URL shape before touching the
// filesystem, so repository URLs never stat a local path.
func classifySource(source string) (driven.SourceKind, error) {
	if domain.IsRemoteRepoURL(source) {
		return driven.KindRemoteRepo, nil
	}

	info, err := os.Stat(source)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedSource, source)
	}
	if info.IsDir() {
		return driven.KindDirectory, nil
	}
	if domain.IsArchivePath(source) {
		return driven.KindArchive, nil
	}
	return driven.KindFile, nil
}
