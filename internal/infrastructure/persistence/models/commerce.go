// Package models contains the GORM persistence models for canonical commerce
// records. Nested collections (line items, variants, addresses) are stored as
// jsonb columns and mapped back to domain types on read; a row whose jsonb
// fails to parse is reported as an error so read-side aggregation can exclude
// it instead of failing.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/optika/backend/internal/domain/commerce"
)

// OrderModel is the persistence model for the canonical Order record.
type OrderModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	PlatformType string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_orders_identity,priority:1"`
	PlatformName string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_orders_identity,priority:2"`
	ExternalID   string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_orders_identity,priority:3"`

	OrderNumber         string          `gorm:"type:varchar(100)"`
	TotalPrice          decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	FinancialStatus     string          `gorm:"type:varchar(20);not null;index"`
	FulfillmentStatus   string          `gorm:"type:varchar(50)"`
	BuyerUsername       string          `gorm:"type:varchar(255)"`
	BuyerEmail          string          `gorm:"type:varchar(255)"`
	ShippingAddressJSON string          `gorm:"type:jsonb;column:shipping_address"`
	LineItemsJSON       string          `gorm:"type:jsonb;column:line_items;not null"`
	RawData             string          `gorm:"type:jsonb;column:raw_data"`
	PlacedAt            time.Time       `gorm:"not null;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a canonical Order.
func (m *OrderModel) ToDomain() (*commerce.Order, error) {
	order := &commerce.Order{
		Identity: commerce.RecordIdentity{
			PlatformType: commerce.PlatformType(m.PlatformType),
			PlatformName: m.PlatformName,
			ExternalID:   m.ExternalID,
		},
		OrderNumber:       m.OrderNumber,
		TotalPrice:        m.TotalPrice,
		FinancialStatus:   commerce.FinancialStatus(m.FinancialStatus),
		FulfillmentStatus: m.FulfillmentStatus,
		BuyerUsername:     m.BuyerUsername,
		BuyerEmail:        m.BuyerEmail,
		RawData:           m.RawData,
		CreatedAt:         m.PlacedAt,
	}
	if !order.FinancialStatus.IsValid() {
		order.FinancialStatus = commerce.FinancialStatusPending
	}

	if m.LineItemsJSON != "" {
		if err := json.Unmarshal([]byte(m.LineItemsJSON), &order.LineItems); err != nil {
			return nil, fmt.Errorf("order %s: malformed line_items: %w", m.ExternalID, err)
		}
	}
	if m.ShippingAddressJSON != "" {
		var addr commerce.ShippingAddress
		if err := json.Unmarshal([]byte(m.ShippingAddressJSON), &addr); err != nil {
			return nil, fmt.Errorf("order %s: malformed shipping_address: %w", m.ExternalID, err)
		}
		order.ShippingAddress = &addr
	}

	return order, nil
}

// FromDomain populates the persistence model from a canonical Order.
func (m *OrderModel) FromDomain(o *commerce.Order) error {
	m.ID = uuid.New()
	m.PlatformType = o.Identity.PlatformType.String()
	m.PlatformName = o.Identity.PlatformName
	m.ExternalID = o.Identity.ExternalID
	m.OrderNumber = o.OrderNumber
	m.TotalPrice = o.TotalPrice
	m.FinancialStatus = o.FinancialStatus.String()
	m.FulfillmentStatus = o.FulfillmentStatus
	m.BuyerUsername = o.BuyerUsername
	m.BuyerEmail = o.BuyerEmail
	m.RawData = o.RawData
	m.PlacedAt = o.CreatedAt

	items, err := json.Marshal(o.LineItems)
	if err != nil {
		return fmt.Errorf("order %s: cannot encode line items: %w", o.Identity.ExternalID, err)
	}
	m.LineItemsJSON = string(items)

	if o.ShippingAddress != nil {
		addr, err := json.Marshal(o.ShippingAddress)
		if err != nil {
			return fmt.Errorf("order %s: cannot encode shipping address: %w", o.Identity.ExternalID, err)
		}
		m.ShippingAddressJSON = string(addr)
	} else {
		m.ShippingAddressJSON = ""
	}

	return nil
}

// ProductModel is the persistence model for the canonical Product record.
type ProductModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	PlatformType string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_products_identity,priority:1"`
	PlatformName string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_products_identity,priority:2"`
	ExternalID   string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_products_identity,priority:3"`

	Title        string `gorm:"type:varchar(255);not null"`
	Description  string `gorm:"type:text"`
	Category     string `gorm:"type:varchar(100);index"`
	Vendor       string `gorm:"type:varchar(255)"`
	TagsJSON     string `gorm:"type:jsonb;column:tags;not null"`
	VariantsJSON string `gorm:"type:jsonb;column:variants;not null"`
	RawData      string `gorm:"type:jsonb;column:raw_data"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a canonical Product.
func (m *ProductModel) ToDomain() (*commerce.Product, error) {
	product := &commerce.Product{
		Identity: commerce.RecordIdentity{
			PlatformType: commerce.PlatformType(m.PlatformType),
			PlatformName: m.PlatformName,
			ExternalID:   m.ExternalID,
		},
		Title:       m.Title,
		Description: m.Description,
		Category:    m.Category,
		Vendor:      m.Vendor,
		RawData:     m.RawData,
	}

	if m.TagsJSON != "" {
		if err := json.Unmarshal([]byte(m.TagsJSON), &product.Tags); err != nil {
			return nil, fmt.Errorf("product %s: malformed tags: %w", m.ExternalID, err)
		}
	}
	if m.VariantsJSON != "" {
		if err := json.Unmarshal([]byte(m.VariantsJSON), &product.Variants); err != nil {
			return nil, fmt.Errorf("product %s: malformed variants: %w", m.ExternalID, err)
		}
	}

	return product, nil
}

// FromDomain populates the persistence model from a canonical Product.
func (m *ProductModel) FromDomain(p *commerce.Product) error {
	m.ID = uuid.New()
	m.PlatformType = p.Identity.PlatformType.String()
	m.PlatformName = p.Identity.PlatformName
	m.ExternalID = p.Identity.ExternalID
	m.Title = p.Title
	m.Description = p.Description
	m.Category = p.Category
	m.Vendor = p.Vendor
	m.RawData = p.RawData

	tags, err := json.Marshal(emptyIfNilStrings(p.Tags))
	if err != nil {
		return fmt.Errorf("product %s: cannot encode tags: %w", p.Identity.ExternalID, err)
	}
	m.TagsJSON = string(tags)

	variants, err := json.Marshal(p.Variants)
	if err != nil {
		return fmt.Errorf("product %s: cannot encode variants: %w", p.Identity.ExternalID, err)
	}
	m.VariantsJSON = string(variants)

	return nil
}

// CustomerModel is the persistence model for the canonical Customer record.
type CustomerModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	PlatformType string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_customers_identity,priority:1"`
	PlatformName string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_customers_identity,priority:2"`
	ExternalID   string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_customers_identity,priority:3"`

	FirstName     string          `gorm:"type:varchar(100)"`
	LastName      string          `gorm:"type:varchar(100)"`
	Email         string          `gorm:"type:varchar(255);index"`
	OrdersCount   int64           `gorm:"not null"`
	TotalSpent    decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	TagsJSON      string          `gorm:"type:jsonb;column:tags;not null"`
	AddressesJSON string          `gorm:"type:jsonb;column:addresses;not null"`
	RawData       string          `gorm:"type:jsonb;column:raw_data"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a canonical Customer.
func (m *CustomerModel) ToDomain() (*commerce.Customer, error) {
	customer := &commerce.Customer{
		Identity: commerce.RecordIdentity{
			PlatformType: commerce.PlatformType(m.PlatformType),
			PlatformName: m.PlatformName,
			ExternalID:   m.ExternalID,
		},
		FirstName:   m.FirstName,
		LastName:    m.LastName,
		Email:       m.Email,
		OrdersCount: m.OrdersCount,
		TotalSpent:  m.TotalSpent,
		RawData:     m.RawData,
	}

	if m.TagsJSON != "" {
		if err := json.Unmarshal([]byte(m.TagsJSON), &customer.Tags); err != nil {
			return nil, fmt.Errorf("customer %s: malformed tags: %w", m.ExternalID, err)
		}
	}
	if m.AddressesJSON != "" {
		if err := json.Unmarshal([]byte(m.AddressesJSON), &customer.Addresses); err != nil {
			return nil, fmt.Errorf("customer %s: malformed addresses: %w", m.ExternalID, err)
		}
	}

	return customer, nil
}

// FromDomain populates the persistence model from a canonical Customer.
func (m *CustomerModel) FromDomain(c *commerce.Customer) error {
	m.ID = uuid.New()
	m.PlatformType = c.Identity.PlatformType.String()
	m.PlatformName = c.Identity.PlatformName
	m.ExternalID = c.Identity.ExternalID
	m.FirstName = c.FirstName
	m.LastName = c.LastName
	m.Email = c.Email
	m.OrdersCount = c.OrdersCount
	m.TotalSpent = c.TotalSpent
	m.RawData = c.RawData

	tags, err := json.Marshal(emptyIfNilStrings(c.Tags))
	if err != nil {
		return fmt.Errorf("customer %s: cannot encode tags: %w", c.Identity.ExternalID, err)
	}
	m.TagsJSON = string(tags)

	addresses, err := json.Marshal(emptyIfNilAddresses(c.Addresses))
	if err != nil {
		return fmt.Errorf("customer %s: cannot encode addresses: %w", c.Identity.ExternalID, err)
	}
	m.AddressesJSON = string(addresses)

	return nil
}

// SyncStateModel records the last successful sync per store. Incremental runs
// use it as the lower time bound for order fetches.
type SyncStateModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	PlatformType string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_sync_state_store,priority:1"`
	PlatformName string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_sync_state_store,priority:2"`
	LastSyncedAt time.Time `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncStateModel) TableName() string {
	return "sync_state"
}

func emptyIfNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func emptyIfNilAddresses(in []commerce.Address) []commerce.Address {
	if in == nil {
		return []commerce.Address{}
	}
	return in
}
