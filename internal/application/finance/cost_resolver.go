// Package finance computes financial reports over the synced commerce data.
// Every computation re-derives from the persisted orders and products on each
// call; there is no cached intermediate state.
package finance

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/optika/backend/internal/domain/commerce"
)

// categoryCostRates estimates cost of goods as a fraction of sale price when
// no authoritative unit cost is known, per product category.
var categoryCostRates = map[string]decimal.Decimal{
	"eyeglasses":     decimal.NewFromFloat(0.50),
	"sunglasses":     decimal.NewFromFloat(0.55),
	"contact lenses": decimal.NewFromFloat(0.60),
	"accessories":    decimal.NewFromFloat(0.65),
}

// defaultCostRate applies when the category is unknown or unmapped.
var defaultCostRate = decimal.NewFromFloat(0.60)

// storeKey scopes cost lookups to one store; products never match line items
// from another store.
type storeKey struct {
	platformType commerce.PlatformType
	platformName string
}

// CostResolver resolves the unit cost of order line items through the
// fallback hierarchy: matched variant unit cost, then category rate, then the
// default rate. Build one resolver per computation from the current product
// snapshot.
type CostResolver struct {
	byStore map[storeKey][]*commerce.Product
}

// NewCostResolver indexes the given products for line item matching.
func NewCostResolver(products []commerce.Product) *CostResolver {
	resolver := &CostResolver{byStore: make(map[storeKey][]*commerce.Product)}
	for i := range products {
		product := &products[i]
		key := storeKey{product.Identity.PlatformType, product.Identity.PlatformName}
		resolver.byStore[key] = append(resolver.byStore[key], product)
	}
	// Deterministic match order: ties between matching products resolve to
	// the lowest external id.
	for _, list := range resolver.byStore {
		sort.Slice(list, func(i, j int) bool {
			return list[i].Identity.ExternalID < list[j].Identity.ExternalID
		})
	}
	return resolver
}

// UnitCost returns the estimated cost of one unit of the given line item for
// an order from the given store.
func (r *CostResolver) UnitCost(orderIdentity commerce.RecordIdentity, item commerce.LineItem) decimal.Decimal {
	key := storeKey{orderIdentity.PlatformType, orderIdentity.PlatformName}
	product := r.match(key, item)
	if product == nil {
		return defaultCostRate.Mul(item.UnitPrice)
	}

	if variant := matchVariant(product, item); variant != nil && variant.UnitCost != nil {
		return *variant.UnitCost
	}
	return categoryRate(product.Category).Mul(item.UnitPrice)
}

// match finds the first product in the store matching the line item by
// external item id or by variant SKU. The per-store list is sorted by
// external id, so the first hit is the deterministic winner.
func (r *CostResolver) match(key storeKey, item commerce.LineItem) *commerce.Product {
	for _, product := range r.byStore[key] {
		if item.ExternalItemID != "" && product.Identity.ExternalID == item.ExternalItemID {
			return product
		}
		if product.HasVariantSKU(item.SKU) {
			return product
		}
	}
	return nil
}

// matchVariant picks the variant the line item refers to: an exact SKU match
// first, else the product's sole variant.
func matchVariant(product *commerce.Product, item commerce.LineItem) *commerce.Variant {
	if item.SKU != "" {
		for i := range product.Variants {
			if product.Variants[i].SKU == item.SKU {
				return &product.Variants[i]
			}
		}
	}
	if len(product.Variants) == 1 {
		return &product.Variants[0]
	}
	return nil
}

// categoryRate returns the cost rate for a category, case-insensitively.
func categoryRate(category string) decimal.Decimal {
	if rate, ok := categoryCostRates[strings.ToLower(strings.TrimSpace(category))]; ok {
		return rate
	}
	return defaultCostRate
}
