package ecommerce

import "encoding/json"

// Wire types for the Wix REST API (eCommerce orders, Stores catalog, Contacts).
// Monetary amounts are decoded as json.Number so they reach decimal parsing
// without a float round trip.

// ---------------------------------------------------------------------------
// OAuth
// ---------------------------------------------------------------------------

// WixTokenRequest is the client-credentials exchange payload
type WixTokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// WixTokenResponse is the issued short-lived token
type WixTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ---------------------------------------------------------------------------
// Orders (eCommerce v1 search)
// ---------------------------------------------------------------------------

// WixOrderSearchRequest is the envelope of POST /ecom/v1/orders/search
type WixOrderSearchRequest struct {
	Search WixSearch `json:"search"`
}

// WixSearch carries cursor paging plus an optional filter document
type WixSearch struct {
	CursorPaging WixCursorPaging `json:"cursorPaging"`
	Filter       map[string]any  `json:"filter,omitempty"`
}

// WixCursorPaging requests one page; cursor is empty on the first call
type WixCursorPaging struct {
	Limit  int    `json:"limit"`
	Cursor string `json:"cursor,omitempty"`
}

// WixPagingMetadata reports the cursor for the following page
type WixPagingMetadata struct {
	HasNext bool       `json:"hasNext"`
	Cursors WixCursors `json:"cursors"`
}

// WixCursors holds opaque paging cursors
type WixCursors struct {
	Next string `json:"next"`
}

// WixOrdersResponse is the order search result page
type WixOrdersResponse struct {
	Orders         []WixOrder        `json:"orders"`
	PagingMetadata WixPagingMetadata `json:"pagingMetadata"`
}

// WixOrder is one eCommerce order
type WixOrder struct {
	ID                string           `json:"id"`
	Number            string           `json:"number"`
	CreatedDate       string           `json:"createdDate"`
	PaymentStatus     string           `json:"paymentStatus"`
	FulfillmentStatus string           `json:"fulfillmentStatus"`
	PriceSummary      WixPriceSummary  `json:"priceSummary"`
	BuyerInfo         WixBuyerInfo     `json:"buyerInfo"`
	LineItems         []WixLineItem    `json:"lineItems"`
	ShippingInfo      *WixShippingInfo `json:"shippingInfo"`
}

// WixPriceSummary carries the order totals
type WixPriceSummary struct {
	Total WixMoney `json:"total"`
}

// WixMoney is a single monetary amount
type WixMoney struct {
	Amount json.Number `json:"amount"`
}

// WixBuyerInfo identifies the buyer; contactId doubles as the platform handle
type WixBuyerInfo struct {
	Email     string `json:"email"`
	ContactID string `json:"contactId"`
}

// WixLineItem is one order line
type WixLineItem struct {
	ID                 string                 `json:"id"`
	ProductName        WixTranslatedText      `json:"productName"`
	CatalogReference   *WixCatalogReference   `json:"catalogReference"`
	PhysicalProperties *WixPhysicalProperties `json:"physicalProperties"`
	Quantity           int64                  `json:"quantity"`
	Price              WixMoney               `json:"price"`
}

// WixTranslatedText is Wix's original/translated string pair
type WixTranslatedText struct {
	Original string `json:"original"`
}

// WixCatalogReference points a line item back at the catalog product
type WixCatalogReference struct {
	CatalogItemID string `json:"catalogItemId"`
}

// WixPhysicalProperties carries the SKU for physical line items
type WixPhysicalProperties struct {
	SKU string `json:"sku"`
}

// WixShippingInfo carries the delivery destination
type WixShippingInfo struct {
	Logistics *WixLogistics `json:"logistics"`
}

// WixLogistics wraps the shipping destination
type WixLogistics struct {
	ShippingDestination *WixShippingDestination `json:"shippingDestination"`
}

// WixShippingDestination is the resolved delivery address and contact
type WixShippingDestination struct {
	Address        WixAddress        `json:"address"`
	ContactDetails WixContactDetails `json:"contactDetails"`
}

// WixAddress is a structured address
type WixAddress struct {
	AddressLine  string `json:"addressLine"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city"`
	Subdivision  string `json:"subdivision"`
	Country      string `json:"country"`
	PostalCode   string `json:"postalCode"`
}

// WixContactDetails is the recipient name and phone
type WixContactDetails struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

// ---------------------------------------------------------------------------
// Products (Stores v1 query)
// ---------------------------------------------------------------------------

// WixProductQueryRequest is the envelope of POST /stores/v1/products/query
type WixProductQueryRequest struct {
	Query WixProductQuery `json:"query"`
}

// WixProductQuery carries offset paging
type WixProductQuery struct {
	Paging WixPaging `json:"paging"`
}

// WixPaging is classic limit/offset paging
type WixPaging struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// WixProductsResponse is the product query result page
type WixProductsResponse struct {
	Products     []WixProduct `json:"products"`
	TotalResults int          `json:"totalResults"`
}

// WixProduct is one catalog product
type WixProduct struct {
	ID                string                `json:"id"`
	Name              string                `json:"name"`
	Description       string                `json:"description"`
	Brand             string                `json:"brand"`
	Ribbon            string                `json:"ribbon"`
	SKU               string                `json:"sku"`
	ManageVariants    bool                  `json:"manageVariants"`
	PriceData         *WixPriceData         `json:"priceData"`
	CostAndProfitData *WixCostAndProfitData `json:"costAndProfitData"`
	Stock             *WixStock             `json:"stock"`
	Variants          []WixProductVariant   `json:"variants"`
}

// WixPriceData is the catalog price
type WixPriceData struct {
	Price json.Number `json:"price"`
}

// WixCostAndProfitData carries the merchant-entered unit cost
type WixCostAndProfitData struct {
	ItemCost json.Number `json:"itemCost"`
}

// WixStock is the inventory level
type WixStock struct {
	Quantity int64 `json:"quantity"`
}

// WixProductVariant is one managed variant
type WixProductVariant struct {
	ID      string            `json:"id"`
	Variant WixVariantDetails `json:"variant"`
	Stock   *WixStock         `json:"stock"`
}

// WixVariantDetails is the per-variant pricing block
type WixVariantDetails struct {
	SKU               string                `json:"sku"`
	PriceData         *WixPriceData         `json:"priceData"`
	CostAndProfitData *WixCostAndProfitData `json:"costAndProfitData"`
}

// ---------------------------------------------------------------------------
// Contacts (v4 query)
// ---------------------------------------------------------------------------

// WixContactsResponse is one page of GET /contacts/v4/contacts
type WixContactsResponse struct {
	Contacts       []WixContact      `json:"contacts"`
	PagingMetadata WixPagingMetadata `json:"pagingMetadata"`
}

// WixContact is one contact record
type WixContact struct {
	ID   string         `json:"id"`
	Info WixContactInfo `json:"info"`
}

// WixContactInfo carries names, emails and addresses
type WixContactInfo struct {
	Name      *WixContactName    `json:"name"`
	Emails    *WixContactEmails  `json:"emails"`
	Addresses *WixContactAddrSet `json:"addresses"`
	LabelKeys *WixLabelKeys      `json:"labelKeys"`
}

// WixContactName is the structured contact name
type WixContactName struct {
	First string `json:"first"`
	Last  string `json:"last"`
}

// WixContactEmails is the contact email list
type WixContactEmails struct {
	Items []WixContactEmail `json:"items"`
}

// WixContactEmail is one email entry
type WixContactEmail struct {
	Email   string `json:"email"`
	Primary bool   `json:"primary"`
}

// WixContactAddrSet is the contact address list
type WixContactAddrSet struct {
	Items []WixContactAddress `json:"items"`
}

// WixContactAddress is one address entry
type WixContactAddress struct {
	Address WixAddress `json:"address"`
}

// WixLabelKeys is the contact label list
type WixLabelKeys struct {
	Items []string `json:"items"`
}
