package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/millbrook-supply/api/internal/domain"
	"github.com/millbrook-supply/api/internal/repositories"
)

// CartServiceDeps carries the collaborators required by NewCartService.
type CartServiceDeps struct {
	Carts    repositories.CartRepository
	Catalog  repositories.CatalogRepository
	OwnerKey string
	Kind     domain.CartKind

	Clock       Clock
	IDGenerator IDGenerator
	Logger      Logger
}

type cartService struct {
	carts    repositories.CartRepository
	catalog  repositories.CatalogRepository
	ownerKey string
	kind     domain.CartKind

	clock Clock
	newID IDGenerator
	log   Logger

	mu       sync.RWMutex
	snapshot domain.Cart
}

// NewCartService builds a CartService bound to a single owner key. Guest and
// authenticated carts are separate instances of the same implementation;
// nothing downstream branches on the ownership kind.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, fmt.Errorf("%w: cart repository is required", ErrCartInvalidInput)
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("%w: catalog repository is required", ErrCartInvalidInput)
	}
	if strings.TrimSpace(deps.OwnerKey) == "" {
		return nil, fmt.Errorf("%w: owner key is required", ErrCartInvalidInput)
	}
	if deps.Kind != domain.CartKindGuest && deps.Kind != domain.CartKindAuth {
		return nil, fmt.Errorf("%w: unknown cart kind %q", ErrCartInvalidInput, deps.Kind)
	}
	svc := &cartService{
		carts:    deps.Carts,
		catalog:  deps.Catalog,
		ownerKey: deps.OwnerKey,
		kind:     deps.Kind,
		clock:    normalizeClock(deps.Clock),
		newID:    deps.IDGenerator,
		log:      deps.Logger,
	}
	if svc.newID == nil {
		svc.newID = defaultIDGenerator
	}
	if svc.log == nil {
		svc.log = noopLogger
	}
	svc.snapshot = domain.Cart{OwnerKey: deps.OwnerKey, Kind: deps.Kind}
	return svc, nil
}

func (s *cartService) Kind() domain.CartKind { return s.kind }

func (s *cartService) OwnerKey() string { return s.ownerKey }

func (s *cartService) Snapshot() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCart(s.snapshot)
}

func (s *cartService) AddItem(ctx context.Context, cmd AddItemCommand) (domain.Cart, error) {
	if strings.TrimSpace(cmd.ProductID) == "" {
		return domain.Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return domain.Cart{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}

	product, err := s.catalog.GetProduct(ctx, cmd.ProductID)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Cart{}, fmt.Errorf("%w: product %s", ErrCartNotFound, cmd.ProductID)
		}
		return domain.Cart{}, translateCartRepoError(err)
	}

	var variant *domain.ProductVariant
	if cmd.VariantID != nil {
		v, err := s.catalog.GetVariant(ctx, *cmd.VariantID)
		if err != nil {
			if isRepoNotFound(err) {
				return domain.Cart{}, fmt.Errorf("%w: variant %s", ErrCartNotFound, *cmd.VariantID)
			}
			return domain.Cart{}, translateCartRepoError(err)
		}
		if v.ProductID != product.ID {
			return domain.Cart{}, fmt.Errorf("%w: variant %s does not belong to product %s", ErrCartInvalidInput, v.ID, product.ID)
		}
		variant = &v
	} else if len(product.Variants) > 0 {
		return domain.Cart{}, fmt.Errorf("%w: product %s requires a variant", ErrCartInvalidInput, cmd.ProductID)
	}

	current, err := s.carts.GetCart(ctx, s.ownerKey, s.kind)
	if err != nil {
		return domain.Cart{}, translateCartRepoError(err)
	}

	// Coalescing can push the combined line across a bulk tier, so price the
	// line at the quantity it will hold after the add.
	combined := cmd.Quantity
	for _, item := range current.Items {
		if item.ProductID == cmd.ProductID && variantIDEqual(item.VariantID, cmd.VariantID) {
			combined += item.Quantity
			break
		}
	}
	available := product.Stock
	if variant != nil {
		available = variant.Stock
	}
	if combined > available {
		return domain.Cart{}, fmt.Errorf("%w: %d requested, %d available", ErrInsufficientStock, combined, available)
	}

	unitPrice, _ := EffectiveUnitPrice(product, variant, combined)

	now := s.clock()
	sku := product.SKU
	if variant != nil {
		sku = variant.SKU
	}
	item := domain.CartItem{
		ID:        s.newID(),
		CartID:    current.ID,
		ProductID: cmd.ProductID,
		VariantID: cmd.VariantID,
		SKU:       sku,
		Quantity:  cmd.Quantity,
		UnitPrice: unitPrice,
		Currency:  product.Currency,
		AddedAt:   now,
	}

	cart, err := s.carts.UpsertItem(ctx, s.ownerKey, item)
	if err != nil {
		return domain.Cart{}, translateCartRepoError(err)
	}
	s.log(ctx, "cart.item.added", map[string]any{
		"owner_key":  s.ownerKey,
		"product_id": cmd.ProductID,
		"quantity":   cmd.Quantity,
	})
	return s.remember(cart), nil
}

func (s *cartService) UpdateQuantity(ctx context.Context, itemID string, quantity int) (domain.Cart, error) {
	if strings.TrimSpace(itemID) == "" {
		return domain.Cart{}, fmt.Errorf("%w: item id is required", ErrCartInvalidInput)
	}
	// Zero and negative quantities are rejected before any store round trip;
	// removal is an explicit, separate operation.
	if quantity <= 0 {
		return domain.Cart{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}

	current, err := s.carts.FindCart(ctx, s.ownerKey)
	if err != nil {
		return domain.Cart{}, translateCartRepoError(err)
	}
	var target *domain.CartItem
	for i := range current.Items {
		if current.Items[i].ID == itemID {
			target = &current.Items[i]
			break
		}
	}
	if target == nil {
		return domain.Cart{}, fmt.Errorf("%w: item %s", ErrCartNotFound, itemID)
	}

	unitPrice, err := s.repriceLine(ctx, *target, quantity)
	if err != nil {
		return domain.Cart{}, err
	}

	cart, err := s.carts.UpdateItemQuantity(ctx, s.ownerKey, itemID, quantity, unitPrice, s.clock())
	if err != nil {
		return domain.Cart{}, translateCartRepoError(err)
	}
	return s.remember(cart), nil
}

func (s *cartService) RemoveItem(ctx context.Context, itemID string) (domain.Cart, error) {
	if strings.TrimSpace(itemID) == "" {
		return domain.Cart{}, fmt.Errorf("%w: item id is required", ErrCartInvalidInput)
	}
	cart, err := s.carts.DeleteItem(ctx, s.ownerKey, itemID)
	if err != nil {
		return domain.Cart{}, translateCartRepoError(err)
	}
	return s.remember(cart), nil
}

func (s *cartService) Load(ctx context.Context) (domain.Cart, error) {
	cart, err := s.carts.GetCart(ctx, s.ownerKey, s.kind)
	if err != nil {
		return domain.Cart{}, translateCartRepoError(err)
	}
	return s.remember(cart), nil
}

func (s *cartService) Clear(ctx context.Context) (domain.Cart, error) {
	cart, err := s.carts.ClearCart(ctx, s.ownerKey)
	if err != nil {
		return domain.Cart{}, translateCartRepoError(err)
	}
	return s.remember(cart), nil
}

// repriceLine recomputes the effective unit price for an existing line at a
// new quantity, so tier boundaries track quantity edits.
func (s *cartService) repriceLine(ctx context.Context, item domain.CartItem, quantity int) (int64, error) {
	product, err := s.catalog.GetProduct(ctx, item.ProductID)
	if err != nil {
		if isRepoNotFound(err) {
			// The product vanished from the catalog after it was added. Keep
			// the committed price rather than failing the edit.
			s.log(ctx, "cart.item.reprice_skipped", map[string]any{
				"owner_key":  s.ownerKey,
				"product_id": item.ProductID,
			})
			return item.UnitPrice, nil
		}
		return 0, translateCartRepoError(err)
	}
	var variant *domain.ProductVariant
	if item.VariantID != nil {
		v, err := s.catalog.GetVariant(ctx, *item.VariantID)
		if err != nil {
			if isRepoNotFound(err) {
				return item.UnitPrice, nil
			}
			return 0, translateCartRepoError(err)
		}
		variant = &v
	}
	available := product.Stock
	if variant != nil {
		available = variant.Stock
	}
	if quantity > available {
		return 0, fmt.Errorf("%w: %d requested, %d available", ErrInsufficientStock, quantity, available)
	}
	price, _ := EffectiveUnitPrice(product, variant, quantity)
	return price, nil
}

func (s *cartService) remember(cart domain.Cart) domain.Cart {
	s.mu.Lock()
	s.snapshot = cloneCart(cart)
	s.mu.Unlock()
	return cart
}

func cloneCart(cart domain.Cart) domain.Cart {
	out := cart
	if cart.Items != nil {
		out.Items = make([]domain.CartItem, len(cart.Items))
		copy(out.Items, cart.Items)
	}
	return out
}

func variantIDEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
