package driven

import (
	"context"

	"github.com/custodia-labs/ragdex/internal/core/domain"
)

// AssetStore persists original source files for later retrieval.
//
// Stores are content-addressed per project: at most one object exists
// per (project, fingerprint) when overwrite is disabled, and storing a
// duplicate fails with domain.ErrAlreadyExists.
type AssetStore interface {
	// Type returns the backend discriminator recorded on documents as
	// SourceInfo.StorageType (e.g. "local").
	Type() string

	// EnsureStorage creates the project-level namespace if needed.
	EnsureStorage(ctx context.Context, projectID string) error

	// Store persists the staged file and returns its URI.
	Store(ctx context.Context, projectID, tmpPath string, meta domain.FileMeta) (string, error)

	// Read fetches the object bytes for a URI produced by Store.
	Read(ctx context.Context, uri string) ([]byte, error)
}
