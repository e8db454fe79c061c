package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/optika/backend/internal/domain/commerce"
	"github.com/optika/backend/internal/domain/platform"
	"github.com/optika/backend/internal/infrastructure/config"
)

const (
	wixAPIBaseURL = "https://www.wixapis.com"
	// wixTokenSkew refreshes the cached token slightly before its expiry so
	// in-flight requests never carry a token about to lapse
	wixTokenSkew = 60 * time.Second
)

// WixConnector implements platform.Connector for one Wix site. Authentication
// is a client-credentials exchange; the issued token is cached on the
// connector with its expiry and refreshed lazily, plus one defensive refresh
// when a request comes back 401.
type WixConnector struct {
	storeName    string
	clientID     string
	clientSecret string
	baseURL      string
	httpClient   *http.Client
	retry        retryPolicy
	logger       *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewWixConnector creates a connector for one configured Wix store.
func NewWixConnector(store config.StoreConfig, syncCfg config.SyncConfig, logger *zap.Logger) (*WixConnector, error) {
	if store.ClientID == "" || store.ClientSecret == "" {
		return nil, fmt.Errorf("%w: wix store %q needs client_id and client_secret", platform.ErrNotConfigured, store.Name)
	}

	return &WixConnector{
		storeName:    store.Name,
		clientID:     store.ClientID,
		clientSecret: store.ClientSecret,
		baseURL:      wixAPIBaseURL,
		httpClient:   &http.Client{Timeout: syncCfg.RequestTimeout},
		retry:        retryPolicy{Attempts: syncCfg.RetryAttempts, Delay: syncCfg.RetryDelay},
		logger:       logger.Named("wix").With(zap.String("store", store.Name)),
	}, nil
}

// PlatformType returns the platform kind this connector talks to
func (c *WixConnector) PlatformType() commerce.PlatformType {
	return commerce.PlatformTypeWix
}

// StoreName returns the configured store name
func (c *WixConnector) StoreName() string {
	return c.storeName
}

// Orders returns a pager over the site's orders. A non-nil since bound is
// passed as an updatedDate filter so unmodified orders are not re-transferred.
func (c *WixConnector) Orders(since *time.Time) platform.OrderPager {
	var filter map[string]any
	if since != nil {
		filter = map[string]any{
			"updatedDate": map[string]any{"$gte": since.UTC().Format(time.RFC3339)},
		}
	}
	return &wixOrderPager{c: c, filter: filter}
}

// Products returns a pager over the site's catalog products
func (c *WixConnector) Products() platform.ProductPager {
	return &wixProductPager{c: c}
}

// Customers returns a pager over the site's contacts
func (c *WixConnector) Customers() platform.CustomerPager {
	return &wixCustomerPager{c: c}
}

// ---------------------------------------------------------------------------
// Authentication
// ---------------------------------------------------------------------------

// token returns a valid access token, exchanging credentials when the cache
// is empty or expired. force discards the cached token first.
func (c *WixConnector) token(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	payload, err := json.Marshal(WixTokenRequest{
		GrantType:    "client_credentials",
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", platform.ErrRequestFailed, err)
	}

	result, err := doWithRetry(ctx, c.httpClient, c.retry, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/token", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		if errors.Is(err, platform.ErrAuthFailed) || errors.Is(err, platform.ErrRequestFailed) {
			// The platform rejected the credentials themselves.
			return "", fmt.Errorf("%w: token exchange rejected", platform.ErrAuthFailed)
		}
		return "", err
	}

	var tokenResp WixTokenResponse
	if err := json.Unmarshal(result.body, &tokenResp); err != nil || tokenResp.AccessToken == "" {
		return "", fmt.Errorf("%w: malformed token response", platform.ErrInvalidResponse)
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - wixTokenSkew)
	c.logger.Debug("access token refreshed", zap.Time("expires", c.tokenExpiry))
	return c.accessToken, nil
}

// call performs one authenticated API call. A 401 triggers exactly one token
// refresh and retry; a second 401 fails the call.
func (c *WixConnector) call(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", platform.ErrRequestFailed, err)
		}
		body = encoded
	}

	forceRefresh := false
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.token(ctx, forceRefresh)
		if err != nil {
			return nil, platform.NewAdapterError(commerce.PlatformTypeWix, c.storeName, platform.PhaseAuth, err)
		}

		result, err := doWithRetry(ctx, c.httpClient, c.retry, func(ctx context.Context) (*http.Request, error) {
			var reader *bytes.Reader
			if body != nil {
				reader = bytes.NewReader(body)
			} else {
				reader = bytes.NewReader(nil)
			}
			req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", token)
			req.Header.Set("Content-Type", "application/json")
			return req, nil
		})
		if err != nil {
			if errors.Is(err, platform.ErrAuthFailed) && attempt == 0 {
				forceRefresh = true
				continue
			}
			phase := platform.PhaseFetch
			if errors.Is(err, platform.ErrAuthFailed) {
				phase = platform.PhaseAuth
			}
			return nil, platform.NewAdapterError(commerce.PlatformTypeWix, c.storeName, phase, err)
		}
		return result.body, nil
	}
	return nil, platform.NewAdapterError(commerce.PlatformTypeWix, c.storeName, platform.PhaseAuth, platform.ErrAuthFailed)
}

// decodeError wraps a payload parse failure as a decode-phase adapter error
func (c *WixConnector) decodeError(err error) error {
	return platform.NewAdapterError(commerce.PlatformTypeWix, c.storeName, platform.PhaseDecode,
		fmt.Errorf("%w: %v", platform.ErrInvalidResponse, err))
}

// ---------------------------------------------------------------------------
// Order Pager
// ---------------------------------------------------------------------------

type wixOrderPager struct {
	c       *WixConnector
	filter  map[string]any
	cursor  string
	started bool
	done    bool
}

func (p *wixOrderPager) Next(ctx context.Context) (*platform.OrderPage, bool, error) {
	if p.done {
		return nil, false, nil
	}

	search := WixSearch{CursorPaging: WixCursorPaging{Limit: defaultPageSize, Cursor: p.cursor}}
	if !p.started {
		search.Filter = p.filter
	}
	body, err := p.c.call(ctx, http.MethodPost, "/ecom/v1/orders/search", WixOrderSearchRequest{Search: search})
	if err != nil {
		p.done = true
		return nil, false, err
	}

	var resp WixOrdersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		p.done = true
		return nil, false, p.c.decodeError(err)
	}

	p.started = true
	p.cursor = resp.PagingMetadata.Cursors.Next
	if !resp.PagingMetadata.HasNext || p.cursor == "" {
		p.done = true
	}

	page := &platform.OrderPage{}
	for i := range resp.Orders {
		order, reason := p.c.convertOrder(&resp.Orders[i])
		if reason != "" {
			page.Skipped = append(page.Skipped, platform.SkippedRecord{
				ExternalID: resp.Orders[i].ID,
				Reason:     reason,
			})
			continue
		}
		page.Orders = append(page.Orders, *order)
	}
	return page, true, nil
}

func (c *WixConnector) convertOrder(raw *WixOrder) (*commerce.Order, string) {
	if raw.ID == "" {
		return nil, "missing external id"
	}
	totalPrice, err := decimal.NewFromString(raw.PriceSummary.Total.Amount.String())
	if err != nil {
		return nil, fmt.Sprintf("malformed total amount %q", raw.PriceSummary.Total.Amount)
	}
	createdAt, err := time.Parse(time.RFC3339, raw.CreatedDate)
	if err != nil {
		return nil, fmt.Sprintf("malformed createdDate %q", raw.CreatedDate)
	}

	order := &commerce.Order{
		Identity: commerce.RecordIdentity{
			PlatformType: commerce.PlatformTypeWix,
			PlatformName: c.storeName,
			ExternalID:   raw.ID,
		},
		OrderNumber:       raw.Number,
		TotalPrice:        totalPrice,
		FinancialStatus:   mapWixPaymentStatus(raw.PaymentStatus),
		FulfillmentStatus: raw.FulfillmentStatus,
		BuyerUsername:     raw.BuyerInfo.ContactID,
		BuyerEmail:        raw.BuyerInfo.Email,
		CreatedAt:         createdAt,
	}

	if raw.ShippingInfo != nil && raw.ShippingInfo.Logistics != nil && raw.ShippingInfo.Logistics.ShippingDestination != nil {
		dest := raw.ShippingInfo.Logistics.ShippingDestination
		name := dest.ContactDetails.FirstName
		if dest.ContactDetails.LastName != "" {
			name += " " + dest.ContactDetails.LastName
		}
		order.ShippingAddress = &commerce.ShippingAddress{
			Name:     name,
			Phone:    dest.ContactDetails.Phone,
			Address1: dest.Address.AddressLine,
			Address2: dest.Address.AddressLine2,
			City:     dest.Address.City,
			Province: dest.Address.Subdivision,
			Country:  dest.Address.Country,
			Zip:      dest.Address.PostalCode,
		}
	}

	for _, item := range raw.LineItems {
		unitPrice, err := decimal.NewFromString(item.Price.Amount.String())
		if err != nil {
			return nil, fmt.Sprintf("malformed line item amount %q", item.Price.Amount)
		}
		lineItem := commerce.LineItem{
			Title:     item.ProductName.Original,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
		}
		if item.CatalogReference != nil {
			lineItem.ExternalItemID = item.CatalogReference.CatalogItemID
		}
		if item.PhysicalProperties != nil {
			lineItem.SKU = item.PhysicalProperties.SKU
		}
		order.LineItems = append(order.LineItems, lineItem)
	}

	if rawBytes, err := json.Marshal(raw); err == nil {
		order.RawData = string(rawBytes)
	}
	return order, ""
}

// mapWixPaymentStatus maps Wix's payment state onto the canonical enum
func mapWixPaymentStatus(status string) commerce.FinancialStatus {
	switch status {
	case "", "NOT_PAID", "PENDING":
		return commerce.FinancialStatusPending
	case "PARTIALLY_PAID":
		return commerce.FinancialStatusPartiallyPaid
	case "PAID":
		return commerce.FinancialStatusPaid
	case "FULLY_REFUNDED", "PARTIALLY_REFUNDED":
		return commerce.FinancialStatusRefunded
	default:
		return commerce.FinancialStatusUnknown
	}
}

// ---------------------------------------------------------------------------
// Product Pager
// ---------------------------------------------------------------------------

type wixProductPager struct {
	c      *WixConnector
	offset int
	done   bool
}

func (p *wixProductPager) Next(ctx context.Context) (*platform.ProductPage, bool, error) {
	if p.done {
		return nil, false, nil
	}

	body, err := p.c.call(ctx, http.MethodPost, "/stores/v1/products/query", WixProductQueryRequest{
		Query: WixProductQuery{Paging: WixPaging{Limit: defaultPageSize, Offset: p.offset}},
	})
	if err != nil {
		p.done = true
		return nil, false, err
	}

	var resp WixProductsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		p.done = true
		return nil, false, p.c.decodeError(err)
	}

	p.offset += len(resp.Products)
	if len(resp.Products) < defaultPageSize || p.offset >= resp.TotalResults {
		p.done = true
	}

	page := &platform.ProductPage{}
	for i := range resp.Products {
		product, reason := p.c.convertProduct(&resp.Products[i])
		if reason != "" {
			page.Skipped = append(page.Skipped, platform.SkippedRecord{
				ExternalID: resp.Products[i].ID,
				Reason:     reason,
			})
			continue
		}
		page.Products = append(page.Products, *product)
	}
	return page, true, nil
}

func (c *WixConnector) convertProduct(raw *WixProduct) (*commerce.Product, string) {
	if raw.ID == "" {
		return nil, "missing external id"
	}

	product := &commerce.Product{
		Identity: commerce.RecordIdentity{
			PlatformType: commerce.PlatformTypeWix,
			PlatformName: c.storeName,
			ExternalID:   raw.ID,
		},
		Title:       raw.Name,
		Description: raw.Description,
		// The storefront labels products with their category as the ribbon
		// text; collections would need a second API round trip per product.
		Category: raw.Ribbon,
		Vendor:   raw.Brand,
	}

	if raw.ManageVariants && len(raw.Variants) > 0 {
		for _, variant := range raw.Variants {
			converted, reason := convertWixVariant(variant)
			if reason != "" {
				return nil, reason
			}
			product.Variants = append(product.Variants, converted)
		}
	} else {
		// Unmanaged products expose a single implicit variant at product level.
		price, reason := parseWixAmount(raw.PriceData)
		if reason != "" {
			return nil, reason
		}
		variant := commerce.Variant{
			SKU:               raw.SKU,
			ExternalVariantID: raw.ID,
			Price:             price,
		}
		if raw.Stock != nil {
			variant.InventoryQuantity = raw.Stock.Quantity
		}
		if cost := parseWixCost(raw.CostAndProfitData); cost != nil {
			variant.UnitCost = cost
		}
		product.Variants = append(product.Variants, variant)
	}

	if rawBytes, err := json.Marshal(raw); err == nil {
		product.RawData = string(rawBytes)
	}
	return product, ""
}

func convertWixVariant(raw WixProductVariant) (commerce.Variant, string) {
	price, reason := parseWixAmount(raw.Variant.PriceData)
	if reason != "" {
		return commerce.Variant{}, reason
	}
	variant := commerce.Variant{
		SKU:               raw.Variant.SKU,
		ExternalVariantID: raw.ID,
		Price:             price,
		UnitCost:          parseWixCost(raw.Variant.CostAndProfitData),
	}
	if raw.Stock != nil {
		variant.InventoryQuantity = raw.Stock.Quantity
	}
	return variant, ""
}

func parseWixAmount(data *WixPriceData) (decimal.Decimal, string) {
	if data == nil {
		return decimal.Zero, ""
	}
	price, err := decimal.NewFromString(data.Price.String())
	if err != nil {
		return decimal.Zero, fmt.Sprintf("malformed price %q", data.Price)
	}
	return price, ""
}

// parseWixCost returns nil for absent or malformed costs; an unparseable cost
// degrades to the fallback hierarchy instead of skipping the product.
func parseWixCost(data *WixCostAndProfitData) *decimal.Decimal {
	if data == nil || data.ItemCost.String() == "" {
		return nil
	}
	cost, err := decimal.NewFromString(data.ItemCost.String())
	if err != nil {
		return nil
	}
	return &cost
}

// ---------------------------------------------------------------------------
// Customer Pager
// ---------------------------------------------------------------------------

type wixCustomerPager struct {
	c       *WixConnector
	cursor  string
	started bool
	done    bool
}

func (p *wixCustomerPager) Next(ctx context.Context) (*platform.CustomerPage, bool, error) {
	if p.done {
		return nil, false, nil
	}

	path := fmt.Sprintf("/contacts/v4/contacts?paging.limit=%d", defaultPageSize)
	if p.started {
		path = fmt.Sprintf("/contacts/v4/contacts?paging.limit=%d&paging.cursor=%s", defaultPageSize, p.cursor)
	}
	body, err := p.c.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		p.done = true
		return nil, false, err
	}

	var resp WixContactsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		p.done = true
		return nil, false, p.c.decodeError(err)
	}

	p.started = true
	p.cursor = resp.PagingMetadata.Cursors.Next
	if !resp.PagingMetadata.HasNext || p.cursor == "" {
		p.done = true
	}

	page := &platform.CustomerPage{}
	for i := range resp.Contacts {
		customer, reason := p.c.convertContact(&resp.Contacts[i])
		if reason != "" {
			page.Skipped = append(page.Skipped, platform.SkippedRecord{
				ExternalID: resp.Contacts[i].ID,
				Reason:     reason,
			})
			continue
		}
		page.Customers = append(page.Customers, *customer)
	}
	return page, true, nil
}

func (c *WixConnector) convertContact(raw *WixContact) (*commerce.Customer, string) {
	if raw.ID == "" {
		return nil, "missing external id"
	}

	customer := &commerce.Customer{
		Identity: commerce.RecordIdentity{
			PlatformType: commerce.PlatformTypeWix,
			PlatformName: c.storeName,
			ExternalID:   raw.ID,
		},
		TotalSpent: decimal.Zero,
	}

	if raw.Info.Name != nil {
		customer.FirstName = raw.Info.Name.First
		customer.LastName = raw.Info.Name.Last
	}
	if raw.Info.Emails != nil {
		for _, email := range raw.Info.Emails.Items {
			if email.Primary || customer.Email == "" {
				customer.Email = email.Email
			}
		}
	}
	if raw.Info.Addresses != nil {
		for _, addr := range raw.Info.Addresses.Items {
			customer.Addresses = append(customer.Addresses, commerce.Address{
				Address1: addr.Address.AddressLine,
				Address2: addr.Address.AddressLine2,
				City:     addr.Address.City,
				Province: addr.Address.Subdivision,
				Country:  addr.Address.Country,
				Zip:      addr.Address.PostalCode,
			})
		}
	}
	if raw.Info.LabelKeys != nil {
		customer.Tags = raw.Info.LabelKeys.Items
	}

	if rawBytes, err := json.Marshal(raw); err == nil {
		customer.RawData = string(rawBytes)
	}
	return customer, ""
}

// Ensure WixConnector implements the Connector interface
var _ platform.Connector = (*WixConnector)(nil)
