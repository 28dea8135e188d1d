package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage wraps a page of results with the token addressing the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Product is a catalog entry. The cart/pricing core treats everything except
// Stock as read-only; catalog CRUD lives outside this service.
type Product struct {
	ID               string
	Name             string
	SKU              string
	BasePrice        int64
	Currency         string
	MinOrderQuantity int
	Stock            int
	LowStockLevel    int
	Variants         []ProductVariant
	BulkPricingTiers []BulkPricingTier
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ProductVariant is a concrete purchasable configuration of a product with its
// own SKU, price, and stock. Attribute keys are unique per variant and the
// union of keys across a product's variants defines its selectable attributes.
type ProductVariant struct {
	ID         string
	ProductID  string
	SKU        string
	Price      int64
	Stock      int
	Attributes map[string]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BulkPricingTier defines a volume discount applied when no variant is
// selected. Tiers belong to the product, not to a variant.
type BulkPricingTier struct {
	ProductID   string
	MinQuantity int
	Price       int64
}

// CartKind distinguishes the two cart identities sharing one contract.
type CartKind string

const (
	// CartKindGuest is an anonymous cart addressed by a client-persisted id.
	CartKindGuest CartKind = "guest"
	// CartKindAuth is a cart bound to an authenticated customer session.
	CartKindAuth CartKind = "auth"
)

// Cart aggregates the mutable shopping cart state for one owner.
type Cart struct {
	ID        string
	OwnerKey  string
	Kind      CartKind
	Currency  string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem stores a single product (optionally variant) line within a cart.
// IDs are assigned by the backing store, never by the client.
type CartItem struct {
	ID        string
	CartID    string
	ProductID string
	VariantID *string
	SKU       string
	Quantity  int
	UnitPrice int64
	Currency  string
	AddedAt   time.Time
	UpdatedAt *time.Time
}

// AdjustDirection selects whether a stock adjustment adds or subtracts.
type AdjustDirection string

const (
	// AdjustAdd increases the stored stock count.
	AdjustAdd AdjustDirection = "add"
	// AdjustSubtract decreases the stored stock count.
	AdjustSubtract AdjustDirection = "subtract"
)

// StockAdjustment is the ephemeral request applied atomically against a
// product's or variant's current stock value. It is never persisted.
type StockAdjustment struct {
	ProductID string
	VariantID *string
	Delta     int
	Direction AdjustDirection
	Reason    string
}

// StockSnapshot reports a stock level together with its derived low-stock flag.
type StockSnapshot struct {
	ProductID  string
	VariantID  *string
	SKU        string
	Stock      int
	Threshold  int
	LowStock   bool
	AdjustedAt time.Time
}

// StockEvent describes an applied stock adjustment for downstream consumers.
type StockEvent struct {
	Type       string
	ProductID  string
	VariantID  *string
	SKU        string
	Delta      int
	Direction  AdjustDirection
	Stock      int
	LowStock   bool
	Reason     string
	OccurredAt time.Time
}

// CheckoutSession represents PSP checkout session metadata handed to clients.
type CheckoutSession struct {
	SessionID    string
	PSP          string
	ClientSecret string
	RedirectURL  string
	ExpiresAt    time.Time
}
