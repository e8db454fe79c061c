package ecommerce

// Wire types for the Shopify Admin REST API (2024-01). Monetary fields arrive
// as strings and are parsed into decimals during normalization; a field that
// fails to parse skips its record, never the page.

// ShopifyOrdersResponse is the envelope of GET /orders.json
type ShopifyOrdersResponse struct {
	Orders []ShopifyOrder `json:"orders"`
}

// ShopifyProductsResponse is the envelope of GET /products.json
type ShopifyProductsResponse struct {
	Products []ShopifyProduct `json:"products"`
}

// ShopifyCustomersResponse is the envelope of GET /customers.json
type ShopifyCustomersResponse struct {
	Customers []ShopifyCustomer `json:"customers"`
}

// ShopifyOrder is one order as returned by the Admin API
type ShopifyOrder struct {
	ID                int64               `json:"id"`
	Name              string              `json:"name"`
	Email             string              `json:"email"`
	CreatedAt         string              `json:"created_at"`
	TotalPrice        string              `json:"total_price"`
	FinancialStatus   string              `json:"financial_status"`
	FulfillmentStatus string              `json:"fulfillment_status"`
	Customer          *ShopifyCustomerRef `json:"customer"`
	ShippingAddress   *ShopifyAddress     `json:"shipping_address"`
	LineItems         []ShopifyLineItem   `json:"line_items"`
}

// ShopifyCustomerRef is the embedded buyer reference on an order
type ShopifyCustomerRef struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ShopifyLineItem is one order line
type ShopifyLineItem struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	VariantID int64  `json:"variant_id"`
	Title     string `json:"title"`
	SKU       string `json:"sku"`
	Quantity  int64  `json:"quantity"`
	Price     string `json:"price"`
}

// ShopifyAddress is a shipping or customer address
type ShopifyAddress struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	Province string `json:"province"`
	Country  string `json:"country"`
	Zip      string `json:"zip"`
}

// ShopifyProduct is one product with its variants
type ShopifyProduct struct {
	ID          int64            `json:"id"`
	Title       string           `json:"title"`
	BodyHTML    string           `json:"body_html"`
	Vendor      string           `json:"vendor"`
	ProductType string           `json:"product_type"`
	Tags        string           `json:"tags"`
	Variants    []ShopifyVariant `json:"variants"`
}

// ShopifyVariant is one sellable variant. The Admin products endpoint does
// not expose unit cost (that lives on the inventory item), so normalized
// variants carry a nil UnitCost and downstream cost resolution falls back to
// category rates.
type ShopifyVariant struct {
	ID                int64  `json:"id"`
	SKU               string `json:"sku"`
	Price             string `json:"price"`
	InventoryQuantity int64  `json:"inventory_quantity"`
}

// ShopifyCustomer is one customer record
type ShopifyCustomer struct {
	ID          int64            `json:"id"`
	FirstName   string           `json:"first_name"`
	LastName    string           `json:"last_name"`
	Email       string           `json:"email"`
	OrdersCount int64            `json:"orders_count"`
	TotalSpent  string           `json:"total_spent"`
	Tags        string           `json:"tags"`
	Addresses   []ShopifyAddress `json:"addresses"`
}
