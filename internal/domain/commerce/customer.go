package commerce

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Customer is the canonical, platform-independent customer record.
type Customer struct {
	Identity RecordIdentity

	FirstName string
	LastName  string
	Email     string
	// OrdersCount is the lifetime order count as reported by the platform
	OrdersCount int64
	// TotalSpent is the lifetime spend as reported by the platform
	TotalSpent decimal.Decimal
	Tags       []string
	Addresses  []Address
	// RawData is the original platform payload (JSON), kept for audit
	RawData string
}

// Address is a customer address entry.
type Address struct {
	Address1 string `json:"address1"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city"`
	Province string `json:"province,omitempty"`
	Country  string `json:"country"`
	Zip      string `json:"zip,omitempty"`
}

// FullName joins the name parts, tolerating either being empty
func (c *Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
