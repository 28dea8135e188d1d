package services

import (
	"context"

	domain "github.com/millbrook-supply/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination      = domain.Pagination
	Product         = domain.Product
	ProductVariant  = domain.ProductVariant
	BulkPricingTier = domain.BulkPricingTier
	Cart            = domain.Cart
	CartItem        = domain.CartItem
	CartKind        = domain.CartKind
	StockAdjustment = domain.StockAdjustment
	StockSnapshot   = domain.StockSnapshot
	StockEvent      = domain.StockEvent
	CheckoutSession = domain.CheckoutSession
)

// CartService is the single contract shared by the guest and the authenticated
// cart. Every mutation returns the full refreshed cart; callers replace their
// local item list wholesale because the store may coalesce an add into an
// existing line for the same product+variant.
type CartService interface {
	AddItem(ctx context.Context, cmd AddItemCommand) (Cart, error)
	UpdateQuantity(ctx context.Context, itemID string, quantity int) (Cart, error)
	RemoveItem(ctx context.Context, itemID string) (Cart, error)
	Load(ctx context.Context) (Cart, error)
	Clear(ctx context.Context) (Cart, error)

	// Snapshot returns the last server-confirmed cart state without touching
	// the backing store. Total and count reducers operate over it.
	Snapshot() Cart
	Kind() CartKind
	OwnerKey() string
}

// PricingService serves product reads, resolves variants, and computes
// effective unit prices.
type PricingService interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
	Quote(ctx context.Context, cmd PriceQuoteCommand) (PriceQuote, error)
}

// StockService applies bounded stock adjustments and reports low-stock state.
type StockService interface {
	Apply(ctx context.Context, adjustment StockAdjustment) (StockSnapshot, error)
	ListLowStock(ctx context.Context, threshold int, page Pagination) (domain.CursorPage[StockSnapshot], error)
}

// CheckoutService coordinates PSP session creation from the active cart.
type CheckoutService interface {
	CreateCheckoutSession(ctx context.Context, cmd CreateCheckoutSessionCommand) (CheckoutSession, error)
}

// AddItemCommand carries the inputs for CartService.AddItem.
type AddItemCommand struct {
	ProductID string
	VariantID *string
	Quantity  int
}

// PriceQuoteCommand requests an effective unit price for a product under an
// attribute selection and a quantity.
type PriceQuoteCommand struct {
	ProductID string
	Quantity  int
	Selected  map[string]string
}

// PriceQuote reports the resolved variant (when any) and the effective price.
type PriceQuote struct {
	ProductID   string
	VariantID   *string
	SKU         string
	Quantity    int
	UnitPrice   int64
	LineTotal   int64
	Currency    string
	TierApplied bool
}

// CreateCheckoutSessionCommand packages checkout session inputs.
type CreateCheckoutSessionCommand struct {
	OwnerKey   string
	SuccessURL string
	CancelURL  string
	Locale     string
	Metadata   map[string]string
}
