package loaders

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
	"github.com/custodia-labs/ragdex/internal/logger"
	"github.com/custodia-labs/ragdex/internal/tempdir"
)

// ArchiveLoader extracts an archive into a fresh scratch directory
// and hands that directory back as the single next source, letting
// recursion process it as a directory.
type ArchiveLoader struct {
	tmp *tempdir.Set
}

var _ driven.Loader = (*ArchiveLoader)(nil)

// NewArchiveLoader returns a loader registering extraction
// directories in tmp.
func NewArchiveLoader(tmp *tempdir.Set) *ArchiveLoader {
	return &ArchiveLoader{tmp: tmp}
}

// Load extracts source. The filter is ignored; it applies when the
// extraction directory is re-resolved.
func (l *ArchiveLoader) Load(ctx context.Context, source, _ string) (driven.LoadResult, error) {
	target, err := l.tmp.New("ragdex-archive-*")
	if err != nil {
		return driven.LoadResult{}, err
	}

	logger.Info("Extracting archive %s to %s", source, target)

	if err := extract(source, target); err != nil {
		return driven.LoadResult{}, err
	}

	return driven.LoadResult{NextSources: []string{target}}, nil
}

func extract(source, target string) error {
	switch ext := domain.ArchiveExt(source); {
	case ext == ".zip":
		return extractZip(source, target)
	case ext == ".tar.gz" || ext == ".tar":
		return extractTar(source, target, ext == ".tar.gz")
	case domain.KnownUnsupportedArchiveExts[ext]:
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedArchive, source)
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownArchive, source)
	}
}

func extractZip(source, target string) error {
	zr, err := zip.OpenReader(source)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	for _, file := range zr.File {
		dest, err := securePath(target, file.Name)
		if err != nil {
			return err
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("open zip entry %s: %w", file.Name, err)
		}
		err = writeEntry(dest, rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTar(source, target string, gzipped bool) error {
	f, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if gzipped {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("open gzip: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	tr := tar.NewReader(reader)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}

		dest, err := securePath(target, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(dest, tr); err != nil {
				return err
			}
		}
	}
}

// securePath rejects entries that would escape the extraction root.
func securePath(target, name string) (string, error) {
	dest := filepath.Join(target, filepath.FromSlash(name))
	if dest != target && !strings.HasPrefix(dest, target+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: archive entry escapes extraction dir: %s", domain.ErrInvalidInput, name)
	}
	return dest, nil
}

func writeEntry(dest string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}
