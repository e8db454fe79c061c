package commerce

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// FinancialStatus
// ---------------------------------------------------------------------------

// FinancialStatus represents the payment state of an order
type FinancialStatus string

const (
	// FinancialStatusPending indicates payment has not been received
	FinancialStatusPending FinancialStatus = "PENDING"
	// FinancialStatusPartiallyPaid indicates a partial payment was received
	FinancialStatusPartiallyPaid FinancialStatus = "PARTIALLY_PAID"
	// FinancialStatusPaid indicates the order is fully paid
	FinancialStatusPaid FinancialStatus = "PAID"
	// FinancialStatusRefunded indicates the order was refunded
	FinancialStatusRefunded FinancialStatus = "REFUNDED"
	// FinancialStatusUnknown indicates the platform reported an unmapped state
	FinancialStatusUnknown FinancialStatus = "UNKNOWN"
)

// IsValid returns true if the status is valid
func (s FinancialStatus) IsValid() bool {
	switch s {
	case FinancialStatusPending, FinancialStatusPartiallyPaid,
		FinancialStatusPaid, FinancialStatusRefunded, FinancialStatusUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation of FinancialStatus
func (s FinancialStatus) String() string {
	return string(s)
}

// Outstanding returns true if the order still has money owed against it
func (s FinancialStatus) Outstanding() bool {
	return s == FinancialStatusPending || s == FinancialStatusPartiallyPaid
}

// ---------------------------------------------------------------------------
// Order
// ---------------------------------------------------------------------------

// Order is the canonical, platform-independent order record.
type Order struct {
	Identity RecordIdentity

	// OrderNumber is the human-facing order number on the platform
	OrderNumber string
	// TotalPrice is the total the buyer was charged
	TotalPrice decimal.Decimal
	// FinancialStatus is the payment state; absent platform values default to PENDING
	FinancialStatus FinancialStatus
	// FulfillmentStatus is the platform's shipping state, kept verbatim
	FulfillmentStatus string
	// BuyerUsername is the buyer's platform handle, may be empty
	BuyerUsername string
	// BuyerEmail is the buyer's email, may be empty
	BuyerEmail string
	// ShippingAddress is the delivery address, nil when the platform omits it
	ShippingAddress *ShippingAddress
	// LineItems preserves the platform's item ordering
	LineItems []LineItem
	// RawData is the original platform payload (JSON), kept for audit
	RawData string
	// CreatedAt is when the order was created on the platform
	CreatedAt time.Time
}

// LineItem is one line of an order.
type LineItem struct {
	Title          string          `json:"title"`
	SKU            string          `json:"sku"`
	ExternalItemID string          `json:"external_item_id"`
	Quantity       int64           `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
}

// ShippingAddress is a structured delivery address.
type ShippingAddress struct {
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city"`
	Province string `json:"province,omitempty"`
	Country  string `json:"country"`
	Zip      string `json:"zip,omitempty"`
}

// CustomerKey returns the stable grouping key for the buyer: email when
// present, else username, else a synthetic guest key derived from the order
// id so guest orders never merge with each other.
func (o *Order) CustomerKey() string {
	if o.BuyerEmail != "" {
		return o.BuyerEmail
	}
	if o.BuyerUsername != "" {
		return o.BuyerUsername
	}
	return "guest-" + o.Identity.ExternalID
}

// Revenue returns the sum of line item totals. Falls back to TotalPrice when
// the order carries no line items.
func (o *Order) Revenue() decimal.Decimal {
	if len(o.LineItems) == 0 {
		return o.TotalPrice
	}
	total := decimal.Zero
	for _, item := range o.LineItems {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)))
	}
	return total
}
