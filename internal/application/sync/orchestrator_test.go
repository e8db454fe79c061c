package sync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/optika/backend/internal/domain/commerce"
	"github.com/optika/backend/internal/domain/platform"
	"github.com/optika/backend/internal/infrastructure/config"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeOrderPager struct {
	pages   []*platform.OrderPage
	err     error
	block   chan struct{}
	fetched int
}

func (p *fakeOrderPager) Next(ctx context.Context) (*platform.OrderPage, bool, error) {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, false, p.err
	}
	if p.fetched >= len(p.pages) {
		return nil, false, nil
	}
	page := p.pages[p.fetched]
	p.fetched++
	return page, true, nil
}

type emptyProductPager struct{}

func (emptyProductPager) Next(context.Context) (*platform.ProductPage, bool, error) {
	return nil, false, nil
}

type emptyCustomerPager struct{}

func (emptyCustomerPager) Next(context.Context) (*platform.CustomerPage, bool, error) {
	return nil, false, nil
}

type fakeConnector struct {
	platformType commerce.PlatformType
	storeName    string
	orderPager   *fakeOrderPager

	mu        sync.Mutex
	lastSince *time.Time
}

func (c *fakeConnector) PlatformType() commerce.PlatformType { return c.platformType }
func (c *fakeConnector) StoreName() string                   { return c.storeName }

func (c *fakeConnector) Orders(since *time.Time) platform.OrderPager {
	c.mu.Lock()
	c.lastSince = since
	c.mu.Unlock()
	return c.orderPager
}

func (c *fakeConnector) Products() platform.ProductPager   { return emptyProductPager{} }
func (c *fakeConnector) Customers() platform.CustomerPager { return emptyCustomerPager{} }

func (c *fakeConnector) sinceBound() *time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSince
}

type fakeStores struct {
	mu         sync.Mutex
	orders     []*commerce.Order
	orderErr   error
	watermarks map[string]time.Time
}

func newFakeStores() *fakeStores {
	return &fakeStores{watermarks: make(map[string]time.Time)}
}

func (s *fakeStores) UpsertBatch(_ context.Context, orders []*commerce.Order) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orderErr != nil {
		return 0, s.orderErr
	}
	s.orders = append(s.orders, orders...)
	return int64(len(orders)), nil
}

func (s *fakeStores) CountByStore(context.Context) (map[commerce.RecordIdentity]int64, error) {
	return nil, nil
}

func (s *fakeStores) GetLastSyncedAt(_ context.Context, pt commerce.PlatformType, name string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.watermarks[pt.String()+"/"+name]; ok {
		return &t, nil
	}
	return nil, nil
}

func (s *fakeStores) SetLastSyncedAt(_ context.Context, pt commerce.PlatformType, name string, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermarks[pt.String()+"/"+name] = syncedAt
	return nil
}

func (s *fakeStores) List(context.Context) ([]platform.SyncState, error) {
	return nil, nil
}

type nopProductWriter struct{}

func (nopProductWriter) UpsertBatch(context.Context, []*commerce.Product) (int64, error) {
	return 0, nil
}

type nopCustomerWriter struct{}

func (nopCustomerWriter) UpsertBatch(context.Context, []*commerce.Customer) (int64, error) {
	return 0, nil
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		Interval:       time.Minute,
		RunTimeout:     time.Minute,
		RetryAttempts:  1,
		RetryDelay:     time.Millisecond,
		Lookback:       5 * time.Minute,
		InitialWindow:  30 * 24 * time.Hour,
		RequestTimeout: time.Second,
	}
}

func newTestOrchestrator(stores *fakeStores, connectors ...platform.Connector) *Orchestrator {
	return NewOrchestrator(connectors, stores, nopProductWriter{}, nopCustomerWriter{}, stores, testSyncConfig(), zap.NewNop())
}

func makeOrder(store, externalID string) commerce.Order {
	return commerce.Order{
		Identity: commerce.RecordIdentity{
			PlatformType: commerce.PlatformTypeShopify,
			PlatformName: store,
			ExternalID:   externalID,
		},
		TotalPrice:      decimal.NewFromInt(10),
		FinancialStatus: commerce.FinancialStatusPaid,
		CreatedAt:       time.Now().UTC(),
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestOrchestrator_Run(t *testing.T) {
	t.Run("drains all pages and records totals", func(t *testing.T) {
		stores := newFakeStores()
		connector := &fakeConnector{
			platformType: commerce.PlatformTypeShopify,
			storeName:    "main-street",
			orderPager: &fakeOrderPager{pages: []*platform.OrderPage{
				{Orders: []commerce.Order{makeOrder("main-street", "1"), makeOrder("main-street", "2")}},
				{Orders: []commerce.Order{makeOrder("main-street", "3")}},
			}},
		}
		orchestrator := newTestOrchestrator(stores, connector)

		result, err := orchestrator.Run(context.Background(), ModeIncremental)

		require.NoError(t, err)
		assert.Equal(t, int64(3), result.TotalOrders)
		assert.Zero(t, result.FailedStores)
		assert.Len(t, stores.orders, 3)
		// A clean pass advances the watermark.
		assert.Contains(t, stores.watermarks, "SHOPIFY/main-street")
	})

	t.Run("one failing store does not abort the others", func(t *testing.T) {
		stores := newFakeStores()
		healthy := &fakeConnector{
			platformType: commerce.PlatformTypeShopify,
			storeName:    "main-street",
			orderPager: &fakeOrderPager{pages: []*platform.OrderPage{
				{Orders: []commerce.Order{makeOrder("main-street", "1")}},
			}},
		}
		broken := &fakeConnector{
			platformType: commerce.PlatformTypeWix,
			storeName:    "outlet",
			orderPager: &fakeOrderPager{
				err: platform.NewAdapterError(commerce.PlatformTypeWix, "outlet", platform.PhaseFetch, platform.ErrUnavailable),
			},
		}
		orchestrator := newTestOrchestrator(stores, broken, healthy)

		result, err := orchestrator.Run(context.Background(), ModeIncremental)

		require.NoError(t, err)
		require.Len(t, result.Stores, 2)
		assert.Equal(t, 1, result.FailedStores)
		assert.True(t, result.Stores[0].Failed())
		assert.False(t, result.Stores[1].Failed())
		assert.Equal(t, int64(1), result.TotalOrders)
		// The failing store keeps its watermark unset.
		assert.NotContains(t, stores.watermarks, "WIX/outlet")
		assert.Contains(t, stores.watermarks, "SHOPIFY/main-street")
	})

	t.Run("skipped records surface in the store result", func(t *testing.T) {
		stores := newFakeStores()
		connector := &fakeConnector{
			platformType: commerce.PlatformTypeShopify,
			storeName:    "main-street",
			orderPager: &fakeOrderPager{pages: []*platform.OrderPage{
				{
					Orders:  []commerce.Order{makeOrder("main-street", "1")},
					Skipped: []platform.SkippedRecord{{ExternalID: "2", Reason: "malformed total_price"}},
				},
			}},
		}
		orchestrator := newTestOrchestrator(stores, connector)

		result, err := orchestrator.Run(context.Background(), ModeIncremental)

		require.NoError(t, err)
		require.Len(t, result.Stores, 1)
		require.Len(t, result.Stores[0].Skipped, 1)
		assert.Equal(t, "2", result.Stores[0].Skipped[0].ExternalID)
		// Skipped records are warnings, not failures.
		assert.False(t, result.Stores[0].Failed())
	})

	t.Run("replaying the same input is idempotent at the write boundary", func(t *testing.T) {
		stores := newFakeStores()
		page := &platform.OrderPage{Orders: []commerce.Order{makeOrder("main-street", "1")}}
		connector := &fakeConnector{
			platformType: commerce.PlatformTypeShopify,
			storeName:    "main-street",
			orderPager:   &fakeOrderPager{pages: []*platform.OrderPage{page}},
		}
		orchestrator := newTestOrchestrator(stores, connector)
		_, err := orchestrator.Run(context.Background(), ModeIncremental)
		require.NoError(t, err)

		connector.orderPager = &fakeOrderPager{pages: []*platform.OrderPage{page}}
		_, err = orchestrator.Run(context.Background(), ModeIncremental)
		require.NoError(t, err)

		// Both passes write the same identity; the repository upsert collapses
		// them to one stored record.
		identities := make(map[commerce.RecordIdentity]int)
		for _, order := range stores.orders {
			identities[order.Identity]++
		}
		assert.Len(t, identities, 1)
	})
}

func TestOrchestrator_MutualExclusion(t *testing.T) {
	stores := newFakeStores()
	release := make(chan struct{})
	connector := &fakeConnector{
		platformType: commerce.PlatformTypeShopify,
		storeName:    "main-street",
		orderPager:   &fakeOrderPager{block: release},
	}
	orchestrator := newTestOrchestrator(stores, connector)

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		_, err := orchestrator.Run(context.Background(), ModeIncremental)
		done <- err
	}()
	<-started
	// Wait for the first run to take the guard.
	require.Eventually(t, orchestrator.IsRunning, time.Second, time.Millisecond)

	_, err := orchestrator.Run(context.Background(), ModeFull)
	assert.ErrorIs(t, err, ErrSyncInProgress)

	close(release)
	require.NoError(t, <-done)

	// The guard releases once the run finishes.
	_, err = orchestrator.Run(context.Background(), ModeIncremental)
	assert.NoError(t, err)
}

func TestOrchestrator_OrderBound(t *testing.T) {
	t.Run("incremental subtracts the lookback from the watermark", func(t *testing.T) {
		stores := newFakeStores()
		last := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
		stores.watermarks["SHOPIFY/main-street"] = last
		connector := &fakeConnector{
			platformType: commerce.PlatformTypeShopify,
			storeName:    "main-street",
			orderPager:   &fakeOrderPager{},
		}
		orchestrator := newTestOrchestrator(stores, connector)

		_, err := orchestrator.Run(context.Background(), ModeIncremental)

		require.NoError(t, err)
		since := connector.sinceBound()
		require.NotNil(t, since)
		assert.Equal(t, last.Add(-5*time.Minute), *since)
	})

	t.Run("first incremental run uses the initial window", func(t *testing.T) {
		stores := newFakeStores()
		connector := &fakeConnector{
			platformType: commerce.PlatformTypeShopify,
			storeName:    "main-street",
			orderPager:   &fakeOrderPager{},
		}
		orchestrator := newTestOrchestrator(stores, connector)

		_, err := orchestrator.Run(context.Background(), ModeIncremental)

		require.NoError(t, err)
		since := connector.sinceBound()
		require.NotNil(t, since)
		assert.WithinDuration(t, time.Now().UTC().Add(-30*24*time.Hour), *since, time.Minute)
	})

	t.Run("full mode passes no bound", func(t *testing.T) {
		stores := newFakeStores()
		stores.watermarks["SHOPIFY/main-street"] = time.Now().UTC()
		connector := &fakeConnector{
			platformType: commerce.PlatformTypeShopify,
			storeName:    "main-street",
			orderPager:   &fakeOrderPager{},
		}
		orchestrator := newTestOrchestrator(stores, connector)

		_, err := orchestrator.Run(context.Background(), ModeFull)

		require.NoError(t, err)
		assert.Nil(t, connector.sinceBound())
	})
}

func TestOrchestrator_StorageFailure(t *testing.T) {
	stores := newFakeStores()
	stores.orderErr = errors.New("connection refused")
	connector := &fakeConnector{
		platformType: commerce.PlatformTypeShopify,
		storeName:    "main-street",
		orderPager: &fakeOrderPager{pages: []*platform.OrderPage{
			{Orders: []commerce.Order{makeOrder("main-street", "1")}},
		}},
	}
	orchestrator := newTestOrchestrator(stores, connector)

	result, err := orchestrator.Run(context.Background(), ModeIncremental)

	require.NoError(t, err)
	require.Len(t, result.Stores, 1)
	assert.True(t, result.Stores[0].Failed())
	assert.NotContains(t, stores.watermarks, "SHOPIFY/main-street")
}
