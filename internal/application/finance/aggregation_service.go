package finance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/optika/backend/internal/domain/commerce"
)

// ErrStorageUnavailable signals that the report could not be computed because
// the store of record is unreachable. Handlers must surface this explicitly
// rather than serving empty-but-ambiguous results.
var ErrStorageUnavailable = errors.New("finance: storage unavailable")

const (
	// marginWindowDays is the trailing window of the gross margin report
	marginWindowDays = 30
	// dailySeriesDays is the fixed length of the daily margin series
	dailySeriesDays = 7
	// topOutstandingLimit caps the outstanding invoices report
	topOutstandingLimit = 10
)

// OrderReader is the read-side port over persisted orders.
type OrderReader interface {
	FindAll(ctx context.Context, filter commerce.OrderFilter) ([]commerce.Order, int, error)
}

// ProductReader is the read-side port over persisted products.
type ProductReader interface {
	FindAll(ctx context.Context, filter commerce.ProductFilter) ([]commerce.Product, int, error)
}

// ReportFilter narrows a report to one store and/or a date range. All fields
// are optional.
type ReportFilter struct {
	StoreName *string
	DateFrom  *time.Time
	DateTo    *time.Time
}

// ---------------------------------------------------------------------------
// Report types
// ---------------------------------------------------------------------------

// OutstandingInvoice is one customer's unpaid balance within one store.
type OutstandingInvoice struct {
	CustomerKey  string                `json:"customer_key"`
	PlatformType commerce.PlatformType `json:"platform_type"`
	StoreName    string                `json:"store_name"`
	Outstanding  decimal.Decimal       `json:"outstanding"`
	OrderCount   int                   `json:"order_count"`
	LatestOrder  time.Time             `json:"latest_order"`
}

// OutstandingReport lists the largest unpaid customer balances.
type OutstandingReport struct {
	Invoices         []OutstandingInvoice `json:"invoices"`
	TotalOutstanding decimal.Decimal      `json:"total_outstanding"`
	ExcludedRows     int                  `json:"excluded_rows"`
}

// MarginReport is revenue against estimated cost of goods over a window.
type MarginReport struct {
	WindowStart   time.Time       `json:"window_start"`
	WindowEnd     time.Time       `json:"window_end"`
	Revenue       decimal.Decimal `json:"revenue"`
	Cost          decimal.Decimal `json:"cost"`
	Margin        decimal.Decimal `json:"margin"`
	MarginPercent decimal.Decimal `json:"margin_percent"`
	ExcludedRows  int             `json:"excluded_rows"`
}

// DailyMargin is one calendar day of the margin series.
type DailyMargin struct {
	Date          string          `json:"date"`
	Revenue       decimal.Decimal `json:"revenue"`
	Cost          decimal.Decimal `json:"cost"`
	Margin        decimal.Decimal `json:"margin"`
	MarginPercent decimal.Decimal `json:"margin_percent"`
}

// StoreValuation is one store's share of the inventory value.
type StoreValuation struct {
	PlatformType commerce.PlatformType `json:"platform_type"`
	StoreName    string                `json:"store_name"`
	Value        decimal.Decimal       `json:"value"`
	Units        int64                 `json:"units"`
}

// InventoryReport values the on-hand inventory at sale price.
type InventoryReport struct {
	TotalValue   decimal.Decimal  `json:"total_value"`
	Stores       []StoreValuation `json:"stores"`
	ExcludedRows int              `json:"excluded_rows"`
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// AggregationService computes financial reports over the synced data. Reads
// are pure and may run concurrently with an in-flight sync; they tolerate
// seeing partially updated data.
type AggregationService struct {
	orders   OrderReader
	products ProductReader
	logger   *zap.Logger
	now      func() time.Time
}

// NewAggregationService creates a financial aggregation service.
func NewAggregationService(orders OrderReader, products ProductReader, logger *zap.Logger) *AggregationService {
	return &AggregationService{
		orders:   orders,
		products: products,
		logger:   logger.Named("finance"),
		now:      time.Now,
	}
}

// OutstandingInvoices returns the top unpaid customer balances, grouped by
// store-scoped customer key and sorted by outstanding amount descending.
func (s *AggregationService) OutstandingInvoices(ctx context.Context, filter ReportFilter) (*OutstandingReport, error) {
	orders, excluded, err := s.orders.FindAll(ctx, commerce.OrderFilter{
		PlatformName:    filter.StoreName,
		PlacedSince:     filter.DateFrom,
		PlacedUntil:     filter.DateTo,
		OutstandingOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	s.logExcluded("outstanding_invoices", excluded)

	type groupKey struct {
		platformType commerce.PlatformType
		storeName    string
		customer     string
	}
	groups := make(map[groupKey]*OutstandingInvoice)
	total := decimal.Zero
	for i := range orders {
		order := &orders[i]
		key := groupKey{order.Identity.PlatformType, order.Identity.PlatformName, order.CustomerKey()}
		invoice, ok := groups[key]
		if !ok {
			invoice = &OutstandingInvoice{
				CustomerKey:  key.customer,
				PlatformType: key.platformType,
				StoreName:    key.storeName,
				Outstanding:  decimal.Zero,
			}
			groups[key] = invoice
		}
		invoice.Outstanding = invoice.Outstanding.Add(order.TotalPrice)
		invoice.OrderCount++
		if order.CreatedAt.After(invoice.LatestOrder) {
			invoice.LatestOrder = order.CreatedAt
		}
		total = total.Add(order.TotalPrice)
	}

	invoices := make([]OutstandingInvoice, 0, len(groups))
	for _, invoice := range groups {
		invoices = append(invoices, *invoice)
	}
	sort.Slice(invoices, func(i, j int) bool {
		if !invoices[i].Outstanding.Equal(invoices[j].Outstanding) {
			return invoices[i].Outstanding.GreaterThan(invoices[j].Outstanding)
		}
		return invoices[i].CustomerKey < invoices[j].CustomerKey
	})
	if len(invoices) > topOutstandingLimit {
		invoices = invoices[:topOutstandingLimit]
	}

	return &OutstandingReport{
		Invoices:         invoices,
		TotalOutstanding: total,
		ExcludedRows:     excluded,
	}, nil
}

// GrossMargin computes revenue, cost and margin over the trailing 30 days,
// or over the filter's explicit date range when given.
func (s *AggregationService) GrossMargin(ctx context.Context, filter ReportFilter) (*MarginReport, error) {
	windowEnd := s.now().UTC()
	if filter.DateTo != nil {
		windowEnd = *filter.DateTo
	}
	windowStart := windowEnd.AddDate(0, 0, -marginWindowDays)
	if filter.DateFrom != nil {
		windowStart = *filter.DateFrom
	}

	orders, excludedOrders, err := s.orders.FindAll(ctx, commerce.OrderFilter{
		PlatformName: filter.StoreName,
		PlacedSince:  &windowStart,
		PlacedUntil:  &windowEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	resolver, excludedProducts, err := s.buildResolver(ctx, filter)
	if err != nil {
		return nil, err
	}
	excluded := excludedOrders + excludedProducts
	s.logExcluded("gross_margin", excluded)

	revenue := decimal.Zero
	cost := decimal.Zero
	for i := range orders {
		revenue = revenue.Add(orders[i].TotalPrice)
		cost = cost.Add(orderCost(resolver, &orders[i]))
	}
	margin := revenue.Sub(cost)

	return &MarginReport{
		WindowStart:   windowStart,
		WindowEnd:     windowEnd,
		Revenue:       revenue,
		Cost:          cost,
		Margin:        margin,
		MarginPercent: marginPercent(margin, revenue),
		ExcludedRows:  excluded,
	}, nil
}

// DailyMarginSeries returns exactly 7 entries covering the trailing 7
// calendar days including today. Days with no orders appear zero-filled.
func (s *AggregationService) DailyMarginSeries(ctx context.Context, filter ReportFilter) ([]DailyMargin, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)
	windowStart := today.AddDate(0, 0, -(dailySeriesDays - 1))
	windowEnd := today.AddDate(0, 0, 1)

	orders, excluded, err := s.orders.FindAll(ctx, commerce.OrderFilter{
		PlatformName: filter.StoreName,
		PlacedSince:  &windowStart,
		PlacedUntil:  &windowEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	resolver, _, err := s.buildResolver(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.logExcluded("daily_margin_series", excluded)

	type bucket struct{ revenue, cost decimal.Decimal }
	buckets := make(map[string]*bucket, dailySeriesDays)
	for i := range orders {
		day := orders[i].CreatedAt.UTC().Format("2006-01-02")
		b, ok := buckets[day]
		if !ok {
			b = &bucket{revenue: decimal.Zero, cost: decimal.Zero}
			buckets[day] = b
		}
		b.revenue = b.revenue.Add(orders[i].TotalPrice)
		b.cost = b.cost.Add(orderCost(resolver, &orders[i]))
	}

	series := make([]DailyMargin, 0, dailySeriesDays)
	for i := 0; i < dailySeriesDays; i++ {
		day := windowStart.AddDate(0, 0, i).Format("2006-01-02")
		entry := DailyMargin{
			Date:          day,
			Revenue:       decimal.Zero,
			Cost:          decimal.Zero,
			Margin:        decimal.Zero,
			MarginPercent: decimal.Zero,
		}
		if b, ok := buckets[day]; ok {
			entry.Revenue = b.revenue
			entry.Cost = b.cost
			entry.Margin = b.revenue.Sub(b.cost)
			entry.MarginPercent = marginPercent(entry.Margin, entry.Revenue)
		}
		series = append(series, entry)
	}
	return series, nil
}

// InventoryValuation values current inventory at sale price, with per-store
// groups sorted by value descending.
func (s *AggregationService) InventoryValuation(ctx context.Context, filter ReportFilter) (*InventoryReport, error) {
	products, excluded, err := s.products.FindAll(ctx, commerce.ProductFilter{PlatformName: filter.StoreName})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	s.logExcluded("inventory_valuation", excluded)

	type valKey struct {
		platformType commerce.PlatformType
		storeName    string
	}
	groups := make(map[valKey]*StoreValuation)
	total := decimal.Zero
	for i := range products {
		product := &products[i]
		key := valKey{product.Identity.PlatformType, product.Identity.PlatformName}
		group, ok := groups[key]
		if !ok {
			group = &StoreValuation{
				PlatformType: key.platformType,
				StoreName:    key.storeName,
				Value:        decimal.Zero,
			}
			groups[key] = group
		}
		for _, variant := range product.Variants {
			if variant.InventoryQuantity <= 0 {
				continue
			}
			value := variant.Price.Mul(decimal.NewFromInt(variant.InventoryQuantity))
			group.Value = group.Value.Add(value)
			group.Units += variant.InventoryQuantity
			total = total.Add(value)
		}
	}

	stores := make([]StoreValuation, 0, len(groups))
	for _, group := range groups {
		stores = append(stores, *group)
	}
	sort.Slice(stores, func(i, j int) bool {
		if !stores[i].Value.Equal(stores[j].Value) {
			return stores[i].Value.GreaterThan(stores[j].Value)
		}
		return stores[i].StoreName < stores[j].StoreName
	})

	return &InventoryReport{
		TotalValue:   total,
		Stores:       stores,
		ExcludedRows: excluded,
	}, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// buildResolver loads the current product snapshot into a cost resolver.
func (s *AggregationService) buildResolver(ctx context.Context, filter ReportFilter) (*CostResolver, int, error) {
	products, excluded, err := s.products.FindAll(ctx, commerce.ProductFilter{PlatformName: filter.StoreName})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return NewCostResolver(products), excluded, nil
}

// orderCost estimates the cost of goods for one order. Orders without line
// items fall back to the default rate applied to the order total.
func orderCost(resolver *CostResolver, order *commerce.Order) decimal.Decimal {
	if len(order.LineItems) == 0 {
		return defaultCostRate.Mul(order.TotalPrice)
	}
	cost := decimal.Zero
	for _, item := range order.LineItems {
		unitCost := resolver.UnitCost(order.Identity, item)
		cost = cost.Add(unitCost.Mul(decimal.NewFromInt(item.Quantity)))
	}
	return cost
}

// marginPercent computes margin/revenue*100, zero-guarded for zero revenue.
func marginPercent(margin, revenue decimal.Decimal) decimal.Decimal {
	if revenue.IsZero() {
		return decimal.Zero
	}
	return margin.Div(revenue).Mul(decimal.NewFromInt(100))
}

// logExcluded reports rows dropped for malformed stored payloads.
func (s *AggregationService) logExcluded(report string, excluded int) {
	if excluded > 0 {
		s.logger.Warn("rows excluded from aggregate",
			zap.String("report", report),
			zap.Int("excluded", excluded),
		)
	}
}
