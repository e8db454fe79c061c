package platform

import (
	"time"

	"github.com/optika/backend/internal/domain/commerce"
)

// SyncState is the last-success watermark for one store. Incremental runs
// fetch orders updated after this point, minus a safety lookback.
type SyncState struct {
	PlatformType commerce.PlatformType
	PlatformName string
	LastSyncedAt time.Time
}
