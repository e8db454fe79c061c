package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/optika/backend/internal/domain/platform"
	"github.com/optika/backend/internal/infrastructure/config"
)

func newTestWixConnector(t *testing.T, serverURL string, syncCfg config.SyncConfig) *WixConnector {
	t.Helper()
	conn, err := NewWixConnector(config.StoreConfig{
		Platform:     "WIX",
		Name:         "outlet",
		Domain:       "outlet.wixsite.com",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	}, syncCfg, zap.NewNop())
	require.NoError(t, err)
	conn.baseURL = serverURL
	return conn
}

func wixTokenHandler(t *testing.T, hits *atomic.Int32) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req WixTokenRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "client_credentials", req.GrantType)
		assert.Equal(t, "client-id", req.ClientID)
		fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":3600}`, hits.Load())
	}
}

func TestNewWixConnector(t *testing.T) {
	_, err := NewWixConnector(config.StoreConfig{Name: "broken", ClientID: "only-id"}, testSyncConfig(), zap.NewNop())
	assert.ErrorIs(t, err, platform.ErrNotConfigured)
}

func TestWixConnector_TokenCachedAcrossCalls(t *testing.T) {
	var tokenHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", wixTokenHandler(t, &tokenHits))
	mux.HandleFunc("/stores/v1/products/query", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-1", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"products":[],"totalResults":0}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := newTestWixConnector(t, server.URL, testSyncConfig())

	for i := 0; i < 3; i++ {
		_, _, err := conn.Products().Next(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), tokenHits.Load())
}

func TestWixConnector_StaleTokenRefreshedOnce(t *testing.T) {
	var tokenHits, apiHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", wixTokenHandler(t, &tokenHits))
	mux.HandleFunc("/stores/v1/products/query", func(w http.ResponseWriter, r *http.Request) {
		if apiHits.Add(1) == 1 {
			// The first token is treated as revoked server-side.
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "tok-2", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"products":[],"totalResults":0}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := newTestWixConnector(t, server.URL, testSyncConfig())
	_, ok, err := conn.Products().Next(context.Background())

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(2), tokenHits.Load())
	assert.Equal(t, int32(2), apiHits.Load())
}

func TestWixConnector_PersistentAuthFailure(t *testing.T) {
	var tokenHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", wixTokenHandler(t, &tokenHits))
	mux.HandleFunc("/stores/v1/products/query", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := newTestWixConnector(t, server.URL, testSyncConfig())
	_, _, err := conn.Products().Next(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, platform.ErrAuthFailed)
	// One lazy exchange plus exactly one forced refresh, then give up.
	assert.Equal(t, int32(2), tokenHits.Load())

	var adapterErr *platform.AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, platform.PhaseAuth, adapterErr.Phase)
}

func TestWixConnector_TokenExchangeRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_client"}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := newTestWixConnector(t, server.URL, testSyncConfig())
	_, _, err := conn.Orders(nil).Next(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, platform.ErrAuthFailed)
	assert.Contains(t, err.Error(), "token exchange rejected")

	var adapterErr *platform.AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, platform.PhaseAuth, adapterErr.Phase)
	assert.False(t, adapterErr.Transient())
}

func TestWixConnector_OrderCursorPaging(t *testing.T) {
	var mu sync.Mutex
	var searches []WixOrderSearchRequest

	mux := http.NewServeMux()
	var tokenHits atomic.Int32
	mux.HandleFunc("/oauth2/token", wixTokenHandler(t, &tokenHits))
	mux.HandleFunc("/ecom/v1/orders/search", func(w http.ResponseWriter, r *http.Request) {
		var req WixOrderSearchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		searches = append(searches, req)
		count := len(searches)
		mu.Unlock()

		if count == 1 {
			fmt.Fprint(w, `{
				"orders":[{"id":"w-1","number":"10001","createdDate":"2026-08-01T10:00:00Z","paymentStatus":"PAID",
					"priceSummary":{"total":{"amount":"89.90"}},
					"buyerInfo":{"email":"ada@example.com","contactId":"contact-1"},
					"lineItems":[{"id":"li-1","productName":{"original":"Reading Glasses"},"quantity":2,
						"price":{"amount":"44.95"},
						"catalogReference":{"catalogItemId":"p-1"},
						"physicalProperties":{"sku":"RG-001"}}]}],
				"pagingMetadata":{"hasNext":true,"cursors":{"next":"cursor-2"}}
			}`)
			return
		}
		fmt.Fprint(w, `{
			"orders":[{"id":"w-2","number":"10002","createdDate":"2026-08-02T10:00:00Z","paymentStatus":"NOT_PAID",
				"priceSummary":{"total":{"amount":"15.00"}}}],
			"pagingMetadata":{"hasNext":false,"cursors":{"next":""}}
		}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := newTestWixConnector(t, server.URL, testSyncConfig())
	since := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	pager := conn.Orders(&since)

	page1, ok, err := pager.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, page1.Orders, 1)
	order := page1.Orders[0]
	assert.Equal(t, "w-1", order.Identity.ExternalID)
	assert.Equal(t, "PAID", order.FinancialStatus.String())
	assert.True(t, order.TotalPrice.Equal(decimal.RequireFromString("89.90")))
	require.Len(t, order.LineItems, 1)
	assert.Equal(t, "RG-001", order.LineItems[0].SKU)
	assert.Equal(t, "p-1", order.LineItems[0].ExternalItemID)

	page2, ok, err := pager.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, page2.Orders, 1)

	_, ok, err = pager.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.Len(t, searches, 2)
	// The filter rides only on the opening request; afterwards the cursor
	// alone identifies the result set.
	assert.NotNil(t, searches[0].Search.Filter)
	assert.Empty(t, searches[0].Search.CursorPaging.Cursor)
	assert.Nil(t, searches[1].Search.Filter)
	assert.Equal(t, "cursor-2", searches[1].Search.CursorPaging.Cursor)
}

func TestWixConnector_OrderSkipMalformed(t *testing.T) {
	mux := http.NewServeMux()
	var tokenHits atomic.Int32
	mux.HandleFunc("/oauth2/token", wixTokenHandler(t, &tokenHits))
	mux.HandleFunc("/ecom/v1/orders/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"orders":[
				{"id":"bad","createdDate":"not-a-date","priceSummary":{"total":{"amount":"10.00"}}},
				{"id":"good","createdDate":"2026-08-01T10:00:00Z","priceSummary":{"total":{"amount":"10.00"}}}
			],
			"pagingMetadata":{"hasNext":false,"cursors":{"next":""}}
		}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := newTestWixConnector(t, server.URL, testSyncConfig())
	page, ok, err := conn.Orders(nil).Next(context.Background())

	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, page.Orders, 1)
	require.Len(t, page.Skipped, 1)
	assert.Equal(t, "bad", page.Skipped[0].ExternalID)
	assert.Contains(t, page.Skipped[0].Reason, "createdDate")
}

func TestWixConnector_ProductConversion(t *testing.T) {
	mux := http.NewServeMux()
	var tokenHits atomic.Int32
	mux.HandleFunc("/oauth2/token", wixTokenHandler(t, &tokenHits))
	mux.HandleFunc("/stores/v1/products/query", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"products":[
				{"id":"p-1","name":"Aviator Frame","brand":"Lux","ribbon":"Sunglasses","sku":"AV-01",
					"manageVariants":false,
					"priceData":{"price":"199.00"},
					"costAndProfitData":{"itemCost":"80.00"},
					"stock":{"quantity":7}},
				{"id":"p-2","name":"Round Frame","manageVariants":true,
					"variants":[
						{"id":"v-1","variant":{"sku":"RF-S","priceData":{"price":"120.00"}},"stock":{"quantity":3}},
						{"id":"v-2","variant":{"sku":"RF-L","priceData":{"price":"130.00"},"costAndProfitData":{"itemCost":"55.00"}}}
					]}
			],
			"totalResults":2
		}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := newTestWixConnector(t, server.URL, testSyncConfig())
	page, ok, err := conn.Products().Next(context.Background())

	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, page.Products, 2)

	single := page.Products[0]
	assert.Equal(t, "Sunglasses", single.Category)
	assert.Equal(t, "Lux", single.Vendor)
	require.Len(t, single.Variants, 1)
	assert.Equal(t, "AV-01", single.Variants[0].SKU)
	assert.Equal(t, int64(7), single.Variants[0].InventoryQuantity)
	require.NotNil(t, single.Variants[0].UnitCost)
	assert.True(t, single.Variants[0].UnitCost.Equal(decimal.RequireFromString("80.00")))

	managed := page.Products[1]
	require.Len(t, managed.Variants, 2)
	assert.Nil(t, managed.Variants[0].UnitCost)
	require.NotNil(t, managed.Variants[1].UnitCost)
	assert.True(t, managed.Variants[1].UnitCost.Equal(decimal.RequireFromString("55.00")))
}

func TestWixConnector_ContactPaging(t *testing.T) {
	var cursors []string
	mux := http.NewServeMux()
	var tokenHits atomic.Int32
	mux.HandleFunc("/oauth2/token", wixTokenHandler(t, &tokenHits))
	mux.HandleFunc("/contacts/v4/contacts", func(w http.ResponseWriter, r *http.Request) {
		cursors = append(cursors, r.URL.Query().Get("paging.cursor"))
		if len(cursors) == 1 {
			fmt.Fprint(w, `{
				"contacts":[{"id":"c-1","info":{
					"name":{"first":"Ada","last":"Lovelace"},
					"emails":{"items":[{"email":"old@example.com"},{"email":"ada@example.com","primary":true}]},
					"labelKeys":{"items":["vip"]}}}],
				"pagingMetadata":{"hasNext":true,"cursors":{"next":"cc-2"}}
			}`)
			return
		}
		fmt.Fprint(w, `{
			"contacts":[{"id":"c-2","info":{"name":{"first":"Grace"}}}],
			"pagingMetadata":{"hasNext":false,"cursors":{"next":""}}
		}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := newTestWixConnector(t, server.URL, testSyncConfig())
	pager := conn.Customers()

	page1, ok, err := pager.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, page1.Customers, 1)
	assert.Equal(t, "ada@example.com", page1.Customers[0].Email)
	assert.Equal(t, []string{"vip"}, page1.Customers[0].Tags)

	page2, ok, err := pager.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, page2.Customers, 1)

	_, ok, err = pager.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.Equal(t, []string{"", "cc-2"}, cursors)
}

func TestMapWixPaymentStatus(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"", "PENDING"},
		{"NOT_PAID", "PENDING"},
		{"PENDING", "PENDING"},
		{"PARTIALLY_PAID", "PARTIALLY_PAID"},
		{"PAID", "PAID"},
		{"FULLY_REFUNDED", "REFUNDED"},
		{"PARTIALLY_REFUNDED", "REFUNDED"},
		{"CANCELED", "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, mapWixPaymentStatus(tt.raw).String(), "status %q", tt.raw)
	}
}
