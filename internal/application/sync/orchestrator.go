// Package sync coordinates pull-and-upsert runs across every configured
// storefront. One run drains each store's order/product/customer pagers and
// writes the normalized records through the upsert repositories; stores fail
// independently and never abort the run.
package sync

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/optika/backend/internal/domain/commerce"
	"github.com/optika/backend/internal/domain/platform"
	"github.com/optika/backend/internal/infrastructure/config"
)

// ErrSyncInProgress is returned when a run is requested while another run is
// still active. The request is rejected, never queued.
var ErrSyncInProgress = errors.New("sync: run already in progress")

// Mode selects how far back the order fetch reaches.
type Mode string

const (
	// ModeIncremental bounds order fetches to the last successful run per store
	ModeIncremental Mode = "incremental"
	// ModeFull re-fetches everything the platforms will return
	ModeFull Mode = "full"
)

// IsValid returns true if the mode is valid
func (m Mode) IsValid() bool {
	return m == ModeIncremental || m == ModeFull
}

// ---------------------------------------------------------------------------
// Repository ports
// ---------------------------------------------------------------------------

// OrderWriter upserts canonical orders
type OrderWriter interface {
	UpsertBatch(ctx context.Context, orders []*commerce.Order) (int64, error)
	CountByStore(ctx context.Context) (map[commerce.RecordIdentity]int64, error)
}

// ProductWriter upserts canonical products
type ProductWriter interface {
	UpsertBatch(ctx context.Context, products []*commerce.Product) (int64, error)
}

// CustomerWriter upserts canonical customers
type CustomerWriter interface {
	UpsertBatch(ctx context.Context, customers []*commerce.Customer) (int64, error)
}

// StateStore persists per-store sync watermarks
type StateStore interface {
	GetLastSyncedAt(ctx context.Context, platformType commerce.PlatformType, platformName string) (*time.Time, error)
	SetLastSyncedAt(ctx context.Context, platformType commerce.PlatformType, platformName string, syncedAt time.Time) error
	List(ctx context.Context) ([]platform.SyncState, error)
}

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

// StoreResult is the outcome of one store within a run.
type StoreResult struct {
	PlatformType commerce.PlatformType    `json:"platform_type"`
	StoreName    string                   `json:"store_name"`
	Orders       int64                    `json:"orders"`
	Products     int64                    `json:"products"`
	Customers    int64                    `json:"customers"`
	Skipped      []platform.SkippedRecord `json:"skipped,omitempty"`
	Errors       []string                 `json:"errors,omitempty"`
}

// Failed returns true if any step of the store's sync failed
func (r *StoreResult) Failed() bool {
	return len(r.Errors) > 0
}

// RunResult is the aggregate outcome of one sync run.
type RunResult struct {
	ID             uuid.UUID     `json:"id"`
	Mode           Mode          `json:"mode"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	Stores         []StoreResult `json:"stores"`
	TotalOrders    int64         `json:"total_orders"`
	TotalProducts  int64         `json:"total_products"`
	TotalCustomers int64         `json:"total_customers"`
	FailedStores   int           `json:"failed_stores"`
}

// StoreStatus is the per-store view returned by Status.
type StoreStatus struct {
	PlatformType commerce.PlatformType `json:"platform_type"`
	StoreName    string                `json:"store_name"`
	OrderCount   int64                 `json:"order_count"`
	LastSyncedAt *time.Time            `json:"last_synced_at,omitempty"`
}

// ---------------------------------------------------------------------------
// Orchestrator
// ---------------------------------------------------------------------------

// Orchestrator drives sync runs over the configured connectors with
// process-wide mutual exclusion.
type Orchestrator struct {
	connectors []platform.Connector
	orders     OrderWriter
	products   ProductWriter
	customers  CustomerWriter
	states     StateStore
	cfg        config.SyncConfig
	logger     *zap.Logger

	running atomic.Bool
}

// NewOrchestrator creates a sync orchestrator over the given connectors.
// Connector order is preserved: stores sync in configuration order.
func NewOrchestrator(
	connectors []platform.Connector,
	orders OrderWriter,
	products ProductWriter,
	customers CustomerWriter,
	states StateStore,
	cfg config.SyncConfig,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		connectors: connectors,
		orders:     orders,
		products:   products,
		customers:  customers,
		states:     states,
		cfg:        cfg,
		logger:     logger.Named("sync"),
	}
}

// IsRunning reports whether a run is currently in flight.
func (o *Orchestrator) IsRunning() bool {
	return o.running.Load()
}

// Run executes one sync pass across all stores. A second call while a run is
// in flight returns ErrSyncInProgress immediately. Per-store failures are
// recorded in the result; Run itself only errors on mutual exclusion.
func (o *Orchestrator) Run(ctx context.Context, mode Mode) (*RunResult, error) {
	if !mode.IsValid() {
		mode = ModeIncremental
	}
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer o.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.RunTimeout)
	defer cancel()

	result := &RunResult{
		ID:        uuid.New(),
		Mode:      mode,
		StartedAt: time.Now().UTC(),
	}
	o.logger.Info("sync run started",
		zap.String("run_id", result.ID.String()),
		zap.String("mode", string(mode)),
		zap.Int("stores", len(o.connectors)),
	)

	for _, connector := range o.connectors {
		storeResult := o.syncStore(ctx, connector, mode, result.StartedAt)
		result.Stores = append(result.Stores, storeResult)
		result.TotalOrders += storeResult.Orders
		result.TotalProducts += storeResult.Products
		result.TotalCustomers += storeResult.Customers
		if storeResult.Failed() {
			result.FailedStores++
		}
	}

	result.Duration = time.Since(result.StartedAt)
	o.logger.Info("sync run finished",
		zap.String("run_id", result.ID.String()),
		zap.Duration("duration", result.Duration),
		zap.Int64("orders", result.TotalOrders),
		zap.Int64("products", result.TotalProducts),
		zap.Int64("customers", result.TotalCustomers),
		zap.Int("failed_stores", result.FailedStores),
	)
	return result, nil
}

// syncStore runs all three entity types for one store. Each entity type fails
// independently; the watermark advances only on a clean store pass.
func (o *Orchestrator) syncStore(ctx context.Context, connector platform.Connector, mode Mode, runStartedAt time.Time) StoreResult {
	result := StoreResult{
		PlatformType: connector.PlatformType(),
		StoreName:    connector.StoreName(),
	}
	logger := o.logger.With(
		zap.String("platform", connector.PlatformType().String()),
		zap.String("store", connector.StoreName()),
	)

	since, err := o.orderBound(ctx, connector, mode)
	if err != nil {
		// Watermark lookup failure degrades to the initial window, never
		// blocks the store.
		logger.Warn("sync state lookup failed, using initial window", zap.Error(err))
		fallback := runStartedAt.Add(-o.cfg.InitialWindow)
		since = &fallback
	}

	result.Orders = o.drainOrders(ctx, connector, since, &result, logger)
	result.Products = o.drainProducts(ctx, connector, &result, logger)
	result.Customers = o.drainCustomers(ctx, connector, &result, logger)

	if !result.Failed() {
		if err := o.states.SetLastSyncedAt(ctx, connector.PlatformType(), connector.StoreName(), runStartedAt); err != nil {
			logger.Error("failed to persist sync watermark", zap.Error(err))
			result.Errors = append(result.Errors, "sync state: "+err.Error())
		}
	}
	return result
}

// orderBound computes the platform-side since bound for order fetches.
// Full mode returns nil (no bound).
func (o *Orchestrator) orderBound(ctx context.Context, connector platform.Connector, mode Mode) (*time.Time, error) {
	if mode == ModeFull {
		return nil, nil
	}
	last, err := o.states.GetLastSyncedAt(ctx, connector.PlatformType(), connector.StoreName())
	if err != nil {
		return nil, err
	}
	var bound time.Time
	if last == nil {
		bound = time.Now().UTC().Add(-o.cfg.InitialWindow)
	} else {
		// The lookback re-fetches a small overlap so records written while
		// the previous run was in flight are never missed.
		bound = last.Add(-o.cfg.Lookback)
	}
	return &bound, nil
}

func (o *Orchestrator) drainOrders(ctx context.Context, connector platform.Connector, since *time.Time, result *StoreResult, logger *zap.Logger) int64 {
	var written int64
	pager := connector.Orders(since)
	for {
		page, ok, err := pager.Next(ctx)
		if err != nil {
			logger.Error("order fetch failed", zap.Error(err))
			result.Errors = append(result.Errors, "orders: "+err.Error())
			return written
		}
		if !ok {
			return written
		}

		result.Skipped = append(result.Skipped, page.Skipped...)
		batch := make([]*commerce.Order, len(page.Orders))
		for i := range page.Orders {
			batch[i] = &page.Orders[i]
		}
		count, err := o.orders.UpsertBatch(ctx, batch)
		if err != nil {
			logger.Error("order upsert failed", zap.Error(err))
			result.Errors = append(result.Errors, "orders: "+err.Error())
			return written
		}
		written += count
	}
}

func (o *Orchestrator) drainProducts(ctx context.Context, connector platform.Connector, result *StoreResult, logger *zap.Logger) int64 {
	var written int64
	pager := connector.Products()
	for {
		page, ok, err := pager.Next(ctx)
		if err != nil {
			logger.Error("product fetch failed", zap.Error(err))
			result.Errors = append(result.Errors, "products: "+err.Error())
			return written
		}
		if !ok {
			return written
		}

		result.Skipped = append(result.Skipped, page.Skipped...)
		batch := make([]*commerce.Product, len(page.Products))
		for i := range page.Products {
			batch[i] = &page.Products[i]
		}
		count, err := o.products.UpsertBatch(ctx, batch)
		if err != nil {
			logger.Error("product upsert failed", zap.Error(err))
			result.Errors = append(result.Errors, "products: "+err.Error())
			return written
		}
		written += count
	}
}

func (o *Orchestrator) drainCustomers(ctx context.Context, connector platform.Connector, result *StoreResult, logger *zap.Logger) int64 {
	var written int64
	pager := connector.Customers()
	for {
		page, ok, err := pager.Next(ctx)
		if err != nil {
			logger.Error("customer fetch failed", zap.Error(err))
			result.Errors = append(result.Errors, "customers: "+err.Error())
			return written
		}
		if !ok {
			return written
		}

		result.Skipped = append(result.Skipped, page.Skipped...)
		batch := make([]*commerce.Customer, len(page.Customers))
		for i := range page.Customers {
			batch[i] = &page.Customers[i]
		}
		count, err := o.customers.UpsertBatch(ctx, batch)
		if err != nil {
			logger.Error("customer upsert failed", zap.Error(err))
			result.Errors = append(result.Errors, "customers: "+err.Error())
			return written
		}
		written += count
	}
}

// Status reports every configured store with its stored order count and last
// successful sync time. Stores that never synced report a nil watermark.
func (o *Orchestrator) Status(ctx context.Context) ([]StoreStatus, error) {
	counts, err := o.orders.CountByStore(ctx)
	if err != nil {
		return nil, err
	}
	states, err := o.states.List(ctx)
	if err != nil {
		return nil, err
	}

	watermarks := make(map[commerce.RecordIdentity]time.Time, len(states))
	for _, state := range states {
		key := commerce.RecordIdentity{PlatformType: state.PlatformType, PlatformName: state.PlatformName}
		watermarks[key] = state.LastSyncedAt
	}

	statuses := make([]StoreStatus, 0, len(o.connectors))
	for _, connector := range o.connectors {
		key := commerce.RecordIdentity{PlatformType: connector.PlatformType(), PlatformName: connector.StoreName()}
		status := StoreStatus{
			PlatformType: connector.PlatformType(),
			StoreName:    connector.StoreName(),
			OrderCount:   counts[key],
		}
		if synced, ok := watermarks[key]; ok {
			t := synced
			status.LastSyncedAt = &t
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
