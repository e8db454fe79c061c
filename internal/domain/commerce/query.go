package commerce

import "time"

// OrderFilter narrows read-side order queries. Nil fields match everything.
type OrderFilter struct {
	PlatformType *PlatformType
	PlatformName *string
	// PlacedSince and PlacedUntil bound the platform order creation time;
	// Since is inclusive, Until is exclusive
	PlacedSince *time.Time
	PlacedUntil *time.Time
	// OutstandingOnly restricts to PENDING and PARTIALLY_PAID orders
	OutstandingOnly bool
}

// ProductFilter narrows read-side product queries. Nil fields match everything.
type ProductFilter struct {
	PlatformType *PlatformType
	PlatformName *string
}
