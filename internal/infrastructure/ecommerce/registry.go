package ecommerce

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/optika/backend/internal/domain/commerce"
	"github.com/optika/backend/internal/domain/platform"
	"github.com/optika/backend/internal/infrastructure/config"
)

// BuildConnectors constructs one connector per configured store, preserving
// configuration order. A store with unusable credentials fails construction
// so the problem surfaces at boot instead of on the first sync run.
func BuildConnectors(stores []config.StoreConfig, syncCfg config.SyncConfig, logger *zap.Logger) ([]platform.Connector, error) {
	connectors := make([]platform.Connector, 0, len(stores))
	for _, store := range stores {
		switch commerce.PlatformType(store.Platform) {
		case commerce.PlatformTypeShopify:
			connector, err := NewShopifyConnector(store, syncCfg, logger)
			if err != nil {
				return nil, err
			}
			connectors = append(connectors, connector)
		case commerce.PlatformTypeWix:
			connector, err := NewWixConnector(store, syncCfg, logger)
			if err != nil {
				return nil, err
			}
			connectors = append(connectors, connector)
		default:
			return nil, fmt.Errorf("%w: unknown platform %q for store %q", platform.ErrNotConfigured, store.Platform, store.Name)
		}
	}
	return connectors, nil
}
