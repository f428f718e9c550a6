package loaders

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
	"github.com/custodia-labs/ragdex/internal/logger"
)

// DefaultReadConcurrency bounds concurrent file reads per loader
// instance.
const DefaultReadConcurrency = 8

// DirectoryLoader expands a glob filter under a directory and reads
// every matched regular file. Archives are not read here; they are
// returned as next sources so recursion re-resolves them. A single
// failed read aborts the whole call.
type DirectoryLoader struct {
	reader      driven.ContentReader
	concurrency int64
}

var _ driven.Loader = (*DirectoryLoader)(nil)

// NewDirectoryLoader returns a loader reading through reader with the
// given concurrency bound (DefaultReadConcurrency when non-positive).
func NewDirectoryLoader(reader driven.ContentReader, concurrency int64) *DirectoryLoader {
	if concurrency <= 0 {
		concurrency = DefaultReadConcurrency
	}
	return &DirectoryLoader{reader: reader, concurrency: concurrency}
}

// Load expands source. A plain file source is read directly; a
// directory source is walked with the filter applied to paths
// relative to it.
func (l *DirectoryLoader) Load(ctx context.Context, source, filter string) (driven.LoadResult, error) {
	info, err := os.Stat(source)
	if err != nil {
		return driven.LoadResult{}, fmt.Errorf("stat source: %w", err)
	}

	if !info.IsDir() {
		docs, err := l.reader.Read(ctx, source)
		if err != nil {
			return driven.LoadResult{}, err
		}
		return driven.LoadResult{Documents: docs}, nil
	}

	if filter == "" {
		filter = "**/*"
	}

	files, err := expand(source, filter)
	if err != nil {
		return driven.LoadResult{}, err
	}

	var toRead []string
	var nextSources []string
	for _, file := range files {
		if domain.IsArchivePath(file) {
			nextSources = append(nextSources, file)
			continue
		}
		toRead = append(toRead, file)
	}

	logger.Debug("Directory %s: %d files to read, %d archives deferred", source, len(toRead), len(nextSources))

	docs, err := l.readAll(ctx, toRead)
	if err != nil {
		return driven.LoadResult{}, err
	}

	return driven.LoadResult{Documents: docs, NextSources: nextSources}, nil
}

func (l *DirectoryLoader) readAll(ctx context.Context, files []string) ([]*domain.Document, error) {
	sem := semaphore.NewWeighted(l.concurrency)
	g, ctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var docs []*domain.Document

	for _, file := range files {
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			loaded, err := l.reader.Read(ctx, file)
			if err != nil {
				return fmt.Errorf("load %s: %w", file, err)
			}

			mu.Lock()
			docs = append(docs, loaded...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

func expand(root, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if matchGlob(filter, filepath.ToSlash(rel)) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}
