package commerce

// ---------------------------------------------------------------------------
// PlatformType
// ---------------------------------------------------------------------------

// PlatformType identifies the kind of hosted storefront a record came from.
type PlatformType string

const (
	// PlatformTypeShopify represents a Shopify storefront
	PlatformTypeShopify PlatformType = "SHOPIFY"
	// PlatformTypeWix represents a Wix eCommerce storefront
	PlatformTypeWix PlatformType = "WIX"
)

// IsValid returns true if the platform type is valid
func (p PlatformType) IsValid() bool {
	switch p {
	case PlatformTypeShopify, PlatformTypeWix:
		return true
	default:
		return false
	}
}

// String returns the string representation of PlatformType
func (p PlatformType) String() string {
	return string(p)
}

// ---------------------------------------------------------------------------
// RecordIdentity
// ---------------------------------------------------------------------------

// RecordIdentity is the dedup key for every synced entity. Two records with
// the same identity describe the same external object; re-syncing them must
// overwrite, never duplicate.
type RecordIdentity struct {
	// PlatformType is the storefront platform kind
	PlatformType PlatformType
	// PlatformName is the configured store name (one platform may host
	// several independent stores)
	PlatformName string
	// ExternalID is the object's id on the platform
	ExternalID string
}

// IsZero returns true if the identity is missing any component
func (id RecordIdentity) IsZero() bool {
	return !id.PlatformType.IsValid() || id.PlatformName == "" || id.ExternalID == ""
}
