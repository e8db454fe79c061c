package commerce

import (
	"github.com/shopspring/decimal"
)

// Product is the canonical, platform-independent product record.
type Product struct {
	Identity RecordIdentity

	Title       string
	Description string
	// Category is the platform's product type (e.g. "Sunglasses"); drives
	// the cost fallback rate when a variant has no unit cost
	Category string
	Vendor   string
	Tags     []string
	// Variants preserves the platform's variant ordering
	Variants []Variant
	// RawData is the original platform payload (JSON), kept for audit
	RawData string
}

// Variant is one sellable variation of a product.
type Variant struct {
	SKU               string          `json:"sku"`
	ExternalVariantID string          `json:"external_variant_id"`
	Price             decimal.Decimal `json:"price"`
	InventoryQuantity int64           `json:"inventory_quantity"`
	// UnitCost is the authoritative cost of goods when known; nil means
	// unknown and callers must apply the fallback hierarchy
	UnitCost *decimal.Decimal `json:"unit_cost,omitempty"`
}

// HasVariantSKU returns true if any variant carries the given SKU
func (p *Product) HasVariantSKU(sku string) bool {
	if sku == "" {
		return false
	}
	for _, v := range p.Variants {
		if v.SKU == sku {
			return true
		}
	}
	return false
}

// HasVariantID returns true if any variant carries the given external id
func (p *Product) HasVariantID(id string) bool {
	if id == "" {
		return false
	}
	for _, v := range p.Variants {
		if v.ExternalVariantID == id {
			return true
		}
	}
	return false
}
