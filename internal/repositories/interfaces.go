package repositories

import (
	"context"
	"time"

	domain "github.com/millbrook-supply/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CartRepository owns cart header + item persistence for one cart kind.
// The store is the source of truth: every mutation returns the full refreshed
// cart so callers replace their local state wholesale.
type CartRepository interface {
	// GetCart loads the cart addressed by ownerKey, creating it with the
	// given kind when absent.
	GetCart(ctx context.Context, ownerKey string, kind domain.CartKind) (domain.Cart, error)
	// FindCart loads the cart addressed by ownerKey without creating it.
	FindCart(ctx context.Context, ownerKey string) (domain.Cart, error)
	// UpsertItem inserts a new line or coalesces into an existing line for the
	// same product+variant, then returns the refreshed cart.
	UpsertItem(ctx context.Context, ownerKey string, item domain.CartItem) (domain.Cart, error)
	// UpdateItemQuantity sets the quantity of an existing line.
	UpdateItemQuantity(ctx context.Context, ownerKey string, itemID string, quantity int, unitPrice int64, now time.Time) (domain.Cart, error)
	// DeleteItem removes a single line from the cart.
	DeleteItem(ctx context.Context, ownerKey string, itemID string) (domain.Cart, error)
	// ClearCart removes every line, leaving the cart header in place.
	ClearCart(ctx context.Context, ownerKey string) (domain.Cart, error)
}

// CatalogRepository provides read access to products, variants, and bulk
// pricing tiers, plus the single write this core performs: stock updates.
type CatalogRepository interface {
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	GetVariant(ctx context.Context, variantID string) (domain.ProductVariant, error)
	// AdjustProductStock applies a signed delta guarded so the stored value
	// never goes negative; a violation surfaces as a conflict error.
	AdjustProductStock(ctx context.Context, productID string, delta int, now time.Time) (int, error)
	// AdjustVariantStock behaves like AdjustProductStock for a variant row.
	AdjustVariantStock(ctx context.Context, variantID string, delta int, now time.Time) (int, error)
	// ListLowStock returns products at or below the given threshold. A
	// threshold < 0 falls back to each product's configured low-stock level.
	ListLowStock(ctx context.Context, threshold int, page domain.Pagination) (domain.CursorPage[domain.StockSnapshot], error)
}

// TransitionGuard records that a guest-to-authenticated cart merge has run for
// a given transition so it is never replayed.
type TransitionGuard interface {
	// Acquire returns true when the caller is the first to claim the
	// transition key; later claims within the TTL return false.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// StockEventPublisher accepts stock change notifications for downstream processing.
type StockEventPublisher interface {
	PublishStockEvent(ctx context.Context, event domain.StockEvent) error
}
