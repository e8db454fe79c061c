package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/optika/backend/internal/domain/commerce"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	// ErrNotConfigured indicates missing or invalid store credentials
	ErrNotConfigured = errors.New("platform: store not configured")
	// ErrUnavailable indicates a transient transport failure (timeout, 5xx)
	ErrUnavailable = errors.New("platform: temporarily unavailable")
	// ErrRequestFailed indicates a non-transient request failure (4xx)
	ErrRequestFailed = errors.New("platform: request failed")
	// ErrAuthFailed indicates rejected or expired credentials
	ErrAuthFailed = errors.New("platform: authentication failed")
	// ErrInvalidResponse indicates a malformed platform payload
	ErrInvalidResponse = errors.New("platform: invalid response")
	// ErrRateLimited indicates the platform throttled the request
	ErrRateLimited = errors.New("platform: rate limited")
)

// Phase identifies where in the sync pipeline an adapter failure occurred.
type Phase string

const (
	PhaseAuth   Phase = "auth"
	PhaseFetch  Phase = "fetch"
	PhaseDecode Phase = "decode"
)

// AdapterError wraps a platform failure with enough context to attribute it
// to one store without aborting the others.
type AdapterError struct {
	Platform commerce.PlatformType
	Store    string
	Phase    Phase
	Err      error
}

// Error implements the error interface
func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s/%s %s: %v", e.Platform, e.Store, e.Phase, e.Err)
}

// Unwrap returns the underlying cause
func (e *AdapterError) Unwrap() error {
	return e.Err
}

// Transient returns true if retrying the same call may succeed.
// Auth and config failures are permanent for the current run.
func (e *AdapterError) Transient() bool {
	return errors.Is(e.Err, ErrUnavailable) || errors.Is(e.Err, ErrRateLimited)
}

// NewAdapterError builds an AdapterError for the given store and phase.
func NewAdapterError(pt commerce.PlatformType, store string, phase Phase, err error) *AdapterError {
	return &AdapterError{Platform: pt, Store: store, Phase: phase, Err: err}
}

// ---------------------------------------------------------------------------
// Pages
// ---------------------------------------------------------------------------

// SkippedRecord reports a single record that failed normalization. One bad
// record never fails its batch; it is surfaced as a warning instead.
type SkippedRecord struct {
	// ExternalID is the platform id of the bad record, when known
	ExternalID string
	// Reason describes why the record was skipped
	Reason string
}

// OrderPage is one page of normalized orders plus its skipped records.
type OrderPage struct {
	Orders  []commerce.Order
	Skipped []SkippedRecord
}

// ProductPage is one page of normalized products plus its skipped records.
type ProductPage struct {
	Products []commerce.Product
	Skipped  []SkippedRecord
}

// CustomerPage is one page of normalized customers plus its skipped records.
type CustomerPage struct {
	Customers []commerce.Customer
	Skipped   []SkippedRecord
}

// ---------------------------------------------------------------------------
// Pagers
// ---------------------------------------------------------------------------

// OrderPager is a lazy, finite, non-restartable cursor over order pages.
// Next returns ok=false once the sequence is drained; after an error the
// pager must not be reused.
type OrderPager interface {
	Next(ctx context.Context) (page *OrderPage, ok bool, err error)
}

// ProductPager is a lazy, finite, non-restartable cursor over product pages.
type ProductPager interface {
	Next(ctx context.Context) (page *ProductPage, ok bool, err error)
}

// CustomerPager is a lazy, finite, non-restartable cursor over customer pages.
type CustomerPager interface {
	Next(ctx context.Context) (page *CustomerPage, ok bool, err error)
}

// ---------------------------------------------------------------------------
// Connector Port Interface
// ---------------------------------------------------------------------------

// Connector is the port interface for one configured store on one external
// platform. It follows the Ports & Adapters pattern: defined here in the
// domain layer, implemented per platform in the infrastructure layer. Each
// connector owns its authentication (static token or client-credentials
// exchange with a cached, lazily refreshed token).
type Connector interface {
	// PlatformType returns the platform kind this connector talks to
	PlatformType() commerce.PlatformType

	// StoreName returns the configured store name
	StoreName() string

	// Orders returns a pager over the store's orders. A non-nil since bound
	// is passed platform-side so unmodified orders are not re-transferred.
	Orders(since *time.Time) OrderPager

	// Products returns a pager over the store's products
	Products() ProductPager

	// Customers returns a pager over the store's customers
	Customers() CustomerPager
}
