package ecommerce

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/optika/backend/internal/domain/platform"
	"github.com/optika/backend/internal/infrastructure/config"
)

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		RequestTimeout: 5 * time.Second,
		RetryAttempts:  1,
		RetryDelay:     time.Millisecond,
	}
}

func newTestShopifyConnector(t *testing.T, serverURL string, syncCfg config.SyncConfig) *ShopifyConnector {
	t.Helper()
	conn, err := NewShopifyConnector(config.StoreConfig{
		Platform:    "SHOPIFY",
		Name:        "main-street",
		Domain:      "main-street.myshopify.com",
		AccessToken: "shpat_test",
	}, syncCfg, zap.NewNop())
	require.NoError(t, err)
	conn.baseURL = serverURL
	return conn
}

func TestNewShopifyConnector(t *testing.T) {
	_, err := NewShopifyConnector(config.StoreConfig{Name: "broken"}, testSyncConfig(), zap.NewNop())
	assert.ErrorIs(t, err, platform.ErrNotConfigured)
}

func TestParseLinkNext(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{
			name:     "next present",
			header:   `<https://x.myshopify.com/admin/api/2024-01/orders.json?limit=100&page_info=abc123>; rel="next"`,
			expected: "abc123",
		},
		{
			name:     "previous and next",
			header:   `<https://x/orders.json?page_info=prev1>; rel="previous", <https://x/orders.json?page_info=next2>; rel="next"`,
			expected: "next2",
		},
		{
			name:     "only previous",
			header:   `<https://x/orders.json?page_info=prev1>; rel="previous"`,
			expected: "",
		},
		{
			name:     "empty header",
			header:   "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLinkNext(tt.header))
		})
	}
}

func TestShopifyConnector_OrdersPagination(t *testing.T) {
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "shpat_test", r.Header.Get("X-Shopify-Access-Token"))
		queries = append(queries, r.URL.RawQuery)

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page_info") == "" {
			w.Header().Set("Link", `<https://main-street.myshopify.com/admin/api/2024-01/orders.json?limit=100&page_info=cursor-2>; rel="next"`)
			fmt.Fprint(w, `{"orders":[
				{"id":1001,"name":"#1001","email":"ada@example.com","created_at":"2026-08-01T10:00:00Z","total_price":"120.50","financial_status":"paid"},
				{"id":1002,"name":"#1002","created_at":"2026-08-02T10:00:00Z","total_price":"80.00","financial_status":"pending"}
			]}`)
			return
		}
		fmt.Fprint(w, `{"orders":[
			{"id":1003,"name":"#1003","created_at":"2026-08-03T10:00:00Z","total_price":"15.00","financial_status":"partially_paid"}
		]}`)
	}))
	defer server.Close()

	conn := newTestShopifyConnector(t, server.URL, testSyncConfig())
	since := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	pager := conn.Orders(&since)

	page1, ok, err := pager.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, page1.Orders, 2)
	assert.Equal(t, "1001", page1.Orders[0].Identity.ExternalID)

	page2, ok, err := pager.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, page2.Orders, 1)

	_, ok, err = pager.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.Len(t, queries, 2)
	// First request carries the full query including the incremental bound.
	assert.Contains(t, queries[0], "updated_at_min=2026-07-01T00%3A00%3A00Z")
	assert.Contains(t, queries[0], "status=any")
	// Once a cursor is issued only limit and page_info are allowed.
	assert.Contains(t, queries[1], "page_info=cursor-2")
	assert.NotContains(t, queries[1], "updated_at_min")
	assert.NotContains(t, queries[1], "status")
}

func TestShopifyConnector_OrdersSkipMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"orders":[
			{"id":1,"created_at":"2026-08-01T10:00:00Z","total_price":"not-a-number"},
			{"id":2,"created_at":"2026-08-01T10:00:00Z","total_price":"10.00"}
		]}`)
	}))
	defer server.Close()

	conn := newTestShopifyConnector(t, server.URL, testSyncConfig())
	page, ok, err := conn.Orders(nil).Next(context.Background())

	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, page.Orders, 1)
	require.Len(t, page.Skipped, 1)
	assert.Equal(t, "1", page.Skipped[0].ExternalID)
	assert.Contains(t, page.Skipped[0].Reason, "total_price")
}

func TestShopifyConnector_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"products":[]}`)
	}))
	defer server.Close()

	syncCfg := testSyncConfig()
	syncCfg.RetryAttempts = 3
	conn := newTestShopifyConnector(t, server.URL, syncCfg)

	_, ok, err := conn.Products().Next(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(2), calls.Load())
}

func TestShopifyConnector_AuthFailureDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	syncCfg := testSyncConfig()
	syncCfg.RetryAttempts = 3
	conn := newTestShopifyConnector(t, server.URL, syncCfg)

	_, _, err := conn.Orders(nil).Next(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, platform.ErrAuthFailed)
	assert.Equal(t, int32(1), calls.Load())

	var adapterErr *platform.AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.False(t, adapterErr.Transient())
	assert.Equal(t, "main-street", adapterErr.Store)
}

func TestShopifyConnector_DecodeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"customers": not json`)
	}))
	defer server.Close()

	conn := newTestShopifyConnector(t, server.URL, testSyncConfig())
	_, _, err := conn.Customers().Next(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, platform.ErrInvalidResponse)

	var adapterErr *platform.AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, platform.PhaseDecode, adapterErr.Phase)
}

func TestMapShopifyFinancialStatus(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"", "PENDING"},
		{"pending", "PENDING"},
		{"authorized", "PENDING"},
		{"partially_paid", "PARTIALLY_PAID"},
		{"paid", "PAID"},
		{"refunded", "REFUNDED"},
		{"partially_refunded", "REFUNDED"},
		{"voided", "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, mapShopifyFinancialStatus(tt.raw).String(), "status %q", tt.raw)
	}
}
