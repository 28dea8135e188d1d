package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/millbrook-supply/api/internal/domain"
	"github.com/millbrook-supply/api/internal/repositories"
)

// CheckoutProvider creates hosted payment sessions with the PSP.
type CheckoutProvider interface {
	Name() string
	CreateSession(ctx context.Context, req CheckoutSessionRequest) (domain.CheckoutSession, error)
}

// CheckoutSessionRequest is the provider-facing projection of a cart.
type CheckoutSessionRequest struct {
	CartID     string
	OwnerKey   string
	Currency   string
	Lines      []CheckoutLine
	SuccessURL string
	CancelURL  string
	Locale     string
	Metadata   map[string]string
}

// CheckoutLine is one priced cart line handed to the PSP.
type CheckoutLine struct {
	SKU       string
	Name      string
	Quantity  int
	UnitPrice int64
}

// CheckoutServiceDeps carries the collaborators required by NewCheckoutService.
type CheckoutServiceDeps struct {
	Carts    repositories.CartRepository
	Catalog  repositories.CatalogRepository
	Provider CheckoutProvider
	Logger   Logger
}

type checkoutService struct {
	carts    repositories.CartRepository
	catalog  repositories.CatalogRepository
	provider CheckoutProvider
	log      Logger
}

// NewCheckoutService validates deps and builds a CheckoutService.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, fmt.Errorf("%w: cart repository is required", ErrCartInvalidInput)
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("%w: catalog repository is required", ErrCartInvalidInput)
	}
	if deps.Provider == nil {
		return nil, fmt.Errorf("%w: checkout provider is required", ErrCartInvalidInput)
	}
	svc := &checkoutService{
		carts:    deps.Carts,
		catalog:  deps.Catalog,
		provider: deps.Provider,
		log:      deps.Logger,
	}
	if svc.log == nil {
		svc.log = noopLogger
	}
	return svc, nil
}

// CreateCheckoutSession snapshots the owner's cart and opens a PSP session
// over its committed line prices. Prices are not recomputed here; the cart is
// the authority for what the customer agreed to pay.
func (s *checkoutService) CreateCheckoutSession(ctx context.Context, cmd CreateCheckoutSessionCommand) (domain.CheckoutSession, error) {
	if strings.TrimSpace(cmd.OwnerKey) == "" {
		return domain.CheckoutSession{}, fmt.Errorf("%w: owner key is required", ErrCartInvalidInput)
	}
	if cmd.SuccessURL == "" || cmd.CancelURL == "" {
		return domain.CheckoutSession{}, fmt.Errorf("%w: success and cancel URLs are required", ErrCartInvalidInput)
	}

	cart, err := s.carts.FindCart(ctx, cmd.OwnerKey)
	if err != nil {
		return domain.CheckoutSession{}, translateCartRepoError(err)
	}
	if len(cart.Items) == 0 {
		return domain.CheckoutSession{}, ErrCheckoutEmptyCart
	}

	req := CheckoutSessionRequest{
		CartID:     cart.ID,
		OwnerKey:   cmd.OwnerKey,
		Currency:   cart.Currency,
		SuccessURL: cmd.SuccessURL,
		CancelURL:  cmd.CancelURL,
		Locale:     cmd.Locale,
		Metadata:   cmd.Metadata,
		Lines:      make([]CheckoutLine, 0, len(cart.Items)),
	}
	for _, item := range cart.Items {
		name := item.SKU
		if product, err := s.catalog.GetProduct(ctx, item.ProductID); err == nil {
			name = product.Name
		}
		req.Lines = append(req.Lines, CheckoutLine{
			SKU:       item.SKU,
			Name:      name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	session, err := s.provider.CreateSession(ctx, req)
	if err != nil {
		s.log(ctx, "checkout.session.failed", map[string]any{
			"owner_key": cmd.OwnerKey,
			"provider":  s.provider.Name(),
			"error":     err.Error(),
		})
		return domain.CheckoutSession{}, fmt.Errorf("%w: %s", ErrCheckoutUnavailable, s.provider.Name())
	}
	s.log(ctx, "checkout.session.created", map[string]any{
		"owner_key": cmd.OwnerKey,
		"provider":  s.provider.Name(),
		"session":   session.SessionID,
	})
	return session, nil
}
