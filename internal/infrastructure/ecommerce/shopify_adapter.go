package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/optika/backend/internal/domain/commerce"
	"github.com/optika/backend/internal/domain/platform"
	"github.com/optika/backend/internal/infrastructure/config"
)

const shopifyAPIVersion = "2024-01"

// ShopifyConnector implements platform.Connector for one Shopify store using
// the Admin REST API with a long-lived access token.
type ShopifyConnector struct {
	storeName   string
	accessToken string
	baseURL     string
	httpClient  *http.Client
	retry       retryPolicy
	logger      *zap.Logger
}

// NewShopifyConnector creates a connector for one configured Shopify store.
func NewShopifyConnector(store config.StoreConfig, syncCfg config.SyncConfig, logger *zap.Logger) (*ShopifyConnector, error) {
	if store.Domain == "" || store.AccessToken == "" {
		return nil, fmt.Errorf("%w: shopify store %q needs domain and access_token", platform.ErrNotConfigured, store.Name)
	}

	return &ShopifyConnector{
		storeName:   store.Name,
		accessToken: store.AccessToken,
		baseURL:     fmt.Sprintf("https://%s/admin/api/%s", store.Domain, shopifyAPIVersion),
		httpClient:  &http.Client{Timeout: syncCfg.RequestTimeout},
		retry:       retryPolicy{Attempts: syncCfg.RetryAttempts, Delay: syncCfg.RetryDelay},
		logger:      logger.Named("shopify").With(zap.String("store", store.Name)),
	}, nil
}

// PlatformType returns the platform kind this connector talks to
func (c *ShopifyConnector) PlatformType() commerce.PlatformType {
	return commerce.PlatformTypeShopify
}

// StoreName returns the configured store name
func (c *ShopifyConnector) StoreName() string {
	return c.storeName
}

// Orders returns a pager over the store's orders. A non-nil since bound is
// passed as updated_at_min so unmodified orders are not re-transferred.
func (c *ShopifyConnector) Orders(since *time.Time) platform.OrderPager {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(defaultPageSize))
	query.Set("status", "any")
	if since != nil {
		query.Set("updated_at_min", since.UTC().Format(time.RFC3339))
	}
	return &shopifyOrderPager{pager: c.newPager("orders.json", query)}
}

// Products returns a pager over the store's products
func (c *ShopifyConnector) Products() platform.ProductPager {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(defaultPageSize))
	return &shopifyProductPager{pager: c.newPager("products.json", query)}
}

// Customers returns a pager over the store's customers
func (c *ShopifyConnector) Customers() platform.CustomerPager {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(defaultPageSize))
	return &shopifyCustomerPager{pager: c.newPager("customers.json", query)}
}

// ---------------------------------------------------------------------------
// Pagination
// ---------------------------------------------------------------------------

// shopifyPager walks one resource using the Link header page_info cursor.
// Once a cursor is issued, Shopify only accepts limit and page_info.
type shopifyPager struct {
	c        *ShopifyConnector
	resource string
	query    url.Values
	pageInfo string
	started  bool
	done     bool
}

func (c *ShopifyConnector) newPager(resource string, query url.Values) *shopifyPager {
	return &shopifyPager{c: c, resource: resource, query: query}
}

// fetch retrieves the next raw page and advances the cursor. The second
// return value is false once the sequence is drained.
func (p *shopifyPager) fetch(ctx context.Context) ([]byte, bool, error) {
	if p.done {
		return nil, false, nil
	}
	if p.started && p.pageInfo == "" {
		p.done = true
		return nil, false, nil
	}

	query := url.Values{}
	if p.started {
		query.Set("limit", p.query.Get("limit"))
		query.Set("page_info", p.pageInfo)
	} else {
		for k, vs := range p.query {
			query[k] = vs
		}
	}
	requestURL := fmt.Sprintf("%s/%s?%s", p.c.baseURL, p.resource, query.Encode())

	result, err := doWithRetry(ctx, p.c.httpClient, p.c.retry, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Shopify-Access-Token", p.c.accessToken)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		p.done = true
		return nil, false, platform.NewAdapterError(commerce.PlatformTypeShopify, p.c.storeName, platform.PhaseFetch, err)
	}

	p.started = true
	p.pageInfo = parseLinkNext(result.header.Get("Link"))
	return result.body, true, nil
}

// parseLinkNext extracts the page_info cursor from a Link header's rel="next"
// entry, returning "" when there is no next page.
func parseLinkNext(header string) string {
	for _, part := range strings.Split(header, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start < 0 || end < start {
			return ""
		}
		u, err := url.Parse(part[start+1 : end])
		if err != nil {
			return ""
		}
		return u.Query().Get("page_info")
	}
	return ""
}

// ---------------------------------------------------------------------------
// Order Pager
// ---------------------------------------------------------------------------

type shopifyOrderPager struct {
	pager *shopifyPager
}

func (p *shopifyOrderPager) Next(ctx context.Context) (*platform.OrderPage, bool, error) {
	body, ok, err := p.pager.fetch(ctx)
	if err != nil || !ok {
		return nil, false, err
	}

	var resp ShopifyOrdersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, false, platform.NewAdapterError(commerce.PlatformTypeShopify, p.pager.c.storeName, platform.PhaseDecode,
			fmt.Errorf("%w: %v", platform.ErrInvalidResponse, err))
	}

	page := &platform.OrderPage{}
	for i := range resp.Orders {
		order, reason := p.pager.c.convertOrder(&resp.Orders[i])
		if reason != "" {
			page.Skipped = append(page.Skipped, platform.SkippedRecord{
				ExternalID: strconv.FormatInt(resp.Orders[i].ID, 10),
				Reason:     reason,
			})
			continue
		}
		page.Orders = append(page.Orders, *order)
	}
	return page, true, nil
}

// convertOrder normalizes one raw order. A non-empty reason means the record
// must be skipped.
func (c *ShopifyConnector) convertOrder(raw *ShopifyOrder) (*commerce.Order, string) {
	if raw.ID == 0 {
		return nil, "missing external id"
	}
	totalPrice, err := decimal.NewFromString(raw.TotalPrice)
	if err != nil {
		return nil, fmt.Sprintf("malformed total_price %q", raw.TotalPrice)
	}
	createdAt, err := time.Parse(time.RFC3339, raw.CreatedAt)
	if err != nil {
		return nil, fmt.Sprintf("malformed created_at %q", raw.CreatedAt)
	}

	order := &commerce.Order{
		Identity: commerce.RecordIdentity{
			PlatformType: commerce.PlatformTypeShopify,
			PlatformName: c.storeName,
			ExternalID:   strconv.FormatInt(raw.ID, 10),
		},
		OrderNumber:       raw.Name,
		TotalPrice:        totalPrice,
		FinancialStatus:   mapShopifyFinancialStatus(raw.FinancialStatus),
		FulfillmentStatus: raw.FulfillmentStatus,
		BuyerEmail:        raw.Email,
		CreatedAt:         createdAt,
	}
	if order.BuyerEmail == "" && raw.Customer != nil {
		order.BuyerEmail = raw.Customer.Email
	}

	if raw.ShippingAddress != nil {
		order.ShippingAddress = &commerce.ShippingAddress{
			Name:     raw.ShippingAddress.Name,
			Phone:    raw.ShippingAddress.Phone,
			Address1: raw.ShippingAddress.Address1,
			Address2: raw.ShippingAddress.Address2,
			City:     raw.ShippingAddress.City,
			Province: raw.ShippingAddress.Province,
			Country:  raw.ShippingAddress.Country,
			Zip:      raw.ShippingAddress.Zip,
		}
	}

	for _, item := range raw.LineItems {
		unitPrice, err := decimal.NewFromString(item.Price)
		if err != nil {
			return nil, fmt.Sprintf("malformed line item price %q", item.Price)
		}
		order.LineItems = append(order.LineItems, commerce.LineItem{
			Title:          item.Title,
			SKU:            item.SKU,
			ExternalItemID: strconv.FormatInt(item.ProductID, 10),
			Quantity:       item.Quantity,
			UnitPrice:      unitPrice,
		})
	}

	if rawBytes, err := json.Marshal(raw); err == nil {
		order.RawData = string(rawBytes)
	}
	return order, ""
}

// mapShopifyFinancialStatus maps Shopify's payment state onto the canonical
// enum. An absent status means the platform has not charged yet.
func mapShopifyFinancialStatus(status string) commerce.FinancialStatus {
	switch status {
	case "", "pending", "authorized":
		return commerce.FinancialStatusPending
	case "partially_paid":
		return commerce.FinancialStatusPartiallyPaid
	case "paid":
		return commerce.FinancialStatusPaid
	case "refunded", "partially_refunded":
		return commerce.FinancialStatusRefunded
	default:
		return commerce.FinancialStatusUnknown
	}
}

// ---------------------------------------------------------------------------
// Product Pager
// ---------------------------------------------------------------------------

type shopifyProductPager struct {
	pager *shopifyPager
}

func (p *shopifyProductPager) Next(ctx context.Context) (*platform.ProductPage, bool, error) {
	body, ok, err := p.pager.fetch(ctx)
	if err != nil || !ok {
		return nil, false, err
	}

	var resp ShopifyProductsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, false, platform.NewAdapterError(commerce.PlatformTypeShopify, p.pager.c.storeName, platform.PhaseDecode,
			fmt.Errorf("%w: %v", platform.ErrInvalidResponse, err))
	}

	page := &platform.ProductPage{}
	for i := range resp.Products {
		product, reason := p.pager.c.convertProduct(&resp.Products[i])
		if reason != "" {
			page.Skipped = append(page.Skipped, platform.SkippedRecord{
				ExternalID: strconv.FormatInt(resp.Products[i].ID, 10),
				Reason:     reason,
			})
			continue
		}
		page.Products = append(page.Products, *product)
	}
	return page, true, nil
}

func (c *ShopifyConnector) convertProduct(raw *ShopifyProduct) (*commerce.Product, string) {
	if raw.ID == 0 {
		return nil, "missing external id"
	}

	product := &commerce.Product{
		Identity: commerce.RecordIdentity{
			PlatformType: commerce.PlatformTypeShopify,
			PlatformName: c.storeName,
			ExternalID:   strconv.FormatInt(raw.ID, 10),
		},
		Title:       raw.Title,
		Description: raw.BodyHTML,
		Category:    raw.ProductType,
		Vendor:      raw.Vendor,
		Tags:        splitTags(raw.Tags),
	}

	for _, variant := range raw.Variants {
		price, err := decimal.NewFromString(variant.Price)
		if err != nil {
			return nil, fmt.Sprintf("malformed variant price %q", variant.Price)
		}
		product.Variants = append(product.Variants, commerce.Variant{
			SKU:               variant.SKU,
			ExternalVariantID: strconv.FormatInt(variant.ID, 10),
			Price:             price,
			InventoryQuantity: variant.InventoryQuantity,
		})
	}

	if rawBytes, err := json.Marshal(raw); err == nil {
		product.RawData = string(rawBytes)
	}
	return product, ""
}

// ---------------------------------------------------------------------------
// Customer Pager
// ---------------------------------------------------------------------------

type shopifyCustomerPager struct {
	pager *shopifyPager
}

func (p *shopifyCustomerPager) Next(ctx context.Context) (*platform.CustomerPage, bool, error) {
	body, ok, err := p.pager.fetch(ctx)
	if err != nil || !ok {
		return nil, false, err
	}

	var resp ShopifyCustomersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, false, platform.NewAdapterError(commerce.PlatformTypeShopify, p.pager.c.storeName, platform.PhaseDecode,
			fmt.Errorf("%w: %v", platform.ErrInvalidResponse, err))
	}

	page := &platform.CustomerPage{}
	for i := range resp.Customers {
		customer, reason := p.pager.c.convertCustomer(&resp.Customers[i])
		if reason != "" {
			page.Skipped = append(page.Skipped, platform.SkippedRecord{
				ExternalID: strconv.FormatInt(resp.Customers[i].ID, 10),
				Reason:     reason,
			})
			continue
		}
		page.Customers = append(page.Customers, *customer)
	}
	return page, true, nil
}

func (c *ShopifyConnector) convertCustomer(raw *ShopifyCustomer) (*commerce.Customer, string) {
	if raw.ID == 0 {
		return nil, "missing external id"
	}
	totalSpent := decimal.Zero
	if raw.TotalSpent != "" {
		parsed, err := decimal.NewFromString(raw.TotalSpent)
		if err != nil {
			return nil, fmt.Sprintf("malformed total_spent %q", raw.TotalSpent)
		}
		totalSpent = parsed
	}

	customer := &commerce.Customer{
		Identity: commerce.RecordIdentity{
			PlatformType: commerce.PlatformTypeShopify,
			PlatformName: c.storeName,
			ExternalID:   strconv.FormatInt(raw.ID, 10),
		},
		FirstName:   raw.FirstName,
		LastName:    raw.LastName,
		Email:       raw.Email,
		OrdersCount: raw.OrdersCount,
		TotalSpent:  totalSpent,
		Tags:        splitTags(raw.Tags),
	}

	for _, addr := range raw.Addresses {
		customer.Addresses = append(customer.Addresses, commerce.Address{
			Address1: addr.Address1,
			Address2: addr.Address2,
			City:     addr.City,
			Province: addr.Province,
			Country:  addr.Country,
			Zip:      addr.Zip,
		})
	}

	if rawBytes, err := json.Marshal(raw); err == nil {
		customer.RawData = string(rawBytes)
	}
	return customer, ""
}

// splitTags splits Shopify's comma-separated tag string
func splitTags(tags string) []string {
	if tags == "" {
		return nil
	}
	parts := strings.Split(tags, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Ensure ShopifyConnector implements the Connector interface
var _ platform.Connector = (*ShopifyConnector)(nil)
