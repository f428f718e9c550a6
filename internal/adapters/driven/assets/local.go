// Package assets provides asset store backends for persisting original
// source files.
package assets

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
)

var _ driven.AssetStore = (*LocalStore)(nil)

// TypeLocal is the storage discriminator for the local backend.
const TypeLocal = "local"

// fingerprintLen is the number of fingerprint hex characters embedded
// in stored file names.
const fingerprintLen = 16

// LocalConfig holds configuration for the local asset store.
type LocalConfig struct {
	// RootDir is the directory holding all project asset trees.
	RootDir string

	// Overwrite replaces an existing asset instead of failing with
	// domain.ErrAlreadyExists.
	Overwrite bool
}

// LocalStore persists assets on the local filesystem, one directory
// per project. Files are content-addressed by name stem plus a
// fingerprint prefix, so identical content re-ingested under the same
// name is detected as a duplicate.
type LocalStore struct {
	root      string
	overwrite bool
}

// NewLocal creates a local asset store rooted at cfg.RootDir.
func NewLocal(cfg LocalConfig) (*LocalStore, error) {
	if cfg.RootDir == "" {
		return nil, fmt.Errorf("%w: local asset store needs a root dir", domain.ErrInvalidInput)
	}
	return &LocalStore{root: cfg.RootDir, overwrite: cfg.Overwrite}, nil
}

// Type returns the backend discriminator.
func (s *LocalStore) Type() string {
	return TypeLocal
}

// EnsureStorage creates the project directory if needed.
func (s *LocalStore) EnsureStorage(_ context.Context, projectID string) error {
	dir := filepath.Join(s.root, projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}
	return nil
}

// Store copies the staged file into the project tree and returns its
// file:// URI. Storing a duplicate with overwrite disabled returns the
// existing URI together with domain.ErrAlreadyExists; the staged file
// is left in place either way.
func (s *LocalStore) Store(_ context.Context, projectID, tmpPath string, meta domain.FileMeta) (string, error) {
	name := meta.Filename
	if name == "" {
		name = filepath.Base(tmpPath)
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	shortFP := meta.Fingerprint
	if len(shortFP) > fingerprintLen {
		shortFP = shortFP[:fingerprintLen]
	}

	target := filepath.Join(s.root, projectID, fmt.Sprintf("%s_%s%s", stem, shortFP, ext))
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve target path: %w", err)
	}
	uri := "file://" + abs

	if _, err := os.Stat(target); err == nil {
		if !s.overwrite {
			return uri, fmt.Errorf("%w: asset at %s", domain.ErrAlreadyExists, target)
		}
		if err := os.Remove(target); err != nil {
			return "", fmt.Errorf("remove existing asset: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create project dir: %w", err)
	}
	if err := copyFile(tmpPath, target); err != nil {
		return "", fmt.Errorf("store asset: %w", err)
	}
	return uri, nil
}

// Read fetches the object bytes for a URI produced by Store.
func (s *LocalStore) Read(_ context.Context, uri string) ([]byte, error) {
	path := strings.TrimPrefix(uri, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: asset %s", domain.ErrNotFound, uri)
		}
		return nil, fmt.Errorf("read asset: %w", err)
	}
	return data, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
