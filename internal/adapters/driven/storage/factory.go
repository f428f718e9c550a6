// Package storage builds the configured storage backend.
package storage

import (
	"context"
	"fmt"

	"github.com/custodia-labs/ragdex/internal/adapters/driven/storage/pgvector"
	"github.com/custodia-labs/ragdex/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ragdex/internal/config"
	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
)

// New creates a storage client from configuration. The caller owns
// the client and must Close it.
func New(ctx context.Context, cfg config.StoragingConfig) (driven.StorageClient, error) {
	switch cfg.Type {
	case config.StorageSQLite:
		if cfg.SQLite == nil {
			return nil, fmt.Errorf("%w: sqlite storage needs a [sqlite] section", domain.ErrInvalidInput)
		}
		return sqlite.NewStore(sqlite.Config{Path: cfg.SQLite.Path})

	case config.StoragePGVector:
		if cfg.PGVector == nil {
			return nil, fmt.Errorf("%w: pgvector storage needs a [pgvector] section", domain.ErrInvalidInput)
		}
		return pgvector.NewStore(ctx, pgvector.Config{ConnString: cfg.PGVector.ConnString})

	default:
		return nil, fmt.Errorf("%w: storage backend %q", domain.ErrUnsupportedType, cfg.Type)
	}
}
