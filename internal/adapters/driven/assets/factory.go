package assets

import (
	"fmt"

	"github.com/custodia-labs/ragdex/internal/config"
	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
)

// FromConfig creates an asset store from configuration, or nil when
// the section is absent.
func FromConfig(cfg *config.AssetStoreConfig) (driven.AssetStore, error) {
	if cfg == nil {
		return nil, nil
	}

	switch cfg.Type {
	case config.AssetStoreLocal:
		if cfg.Local == nil {
			return nil, fmt.Errorf("%w: local asset store needs a [local] section", domain.ErrInvalidInput)
		}
		return NewLocal(LocalConfig{
			RootDir:   cfg.Local.RootDir,
			Overwrite: cfg.Local.Overwrite,
		})

	default:
		return nil, fmt.Errorf("%w: asset store %q", domain.ErrUnsupportedType, cfg.Type)
	}
}
