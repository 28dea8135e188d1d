package services

import (
	"context"
	"fmt"

	"github.com/millbrook-supply/api/internal/repositories"
)

// PricingServiceDeps carries the collaborators required by NewPricingService.
type PricingServiceDeps struct {
	Catalog repositories.CatalogRepository
	Logger  Logger
}

type pricingService struct {
	catalog repositories.CatalogRepository
	log     Logger
}

// NewPricingService validates deps and builds a PricingService.
func NewPricingService(deps PricingServiceDeps) (PricingService, error) {
	if deps.Catalog == nil {
		return nil, fmt.Errorf("%w: catalog repository is required", ErrCartInvalidInput)
	}
	svc := &pricingService{catalog: deps.Catalog, log: deps.Logger}
	if svc.log == nil {
		svc.log = noopLogger
	}
	return svc, nil
}

// GetProduct loads a product together with its variants and bulk pricing
// tiers.
func (s *pricingService) GetProduct(ctx context.Context, productID string) (Product, error) {
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		return Product{}, translateCartRepoError(err)
	}
	return product, nil
}

// Quote resolves the attribute selection to a variant and prices the given
// quantity. Pricing itself is pure; this method only fetches the inputs.
func (s *pricingService) Quote(ctx context.Context, cmd PriceQuoteCommand) (PriceQuote, error) {
	if cmd.ProductID == "" {
		return PriceQuote{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return PriceQuote{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}

	product, err := s.catalog.GetProduct(ctx, cmd.ProductID)
	if err != nil {
		if isRepoNotFound(err) {
			return PriceQuote{}, fmt.Errorf("%w: %s", ErrProductNotFound, cmd.ProductID)
		}
		return PriceQuote{}, translateCartRepoError(err)
	}

	variant, err := ResolveVariant(ctx, s.log, product, cmd.Selected)
	if err != nil {
		return PriceQuote{}, err
	}

	unitPrice, tiered := EffectiveUnitPrice(product, variant, cmd.Quantity)
	quote := PriceQuote{
		ProductID:   product.ID,
		SKU:         product.SKU,
		Quantity:    cmd.Quantity,
		UnitPrice:   unitPrice,
		LineTotal:   unitPrice * int64(cmd.Quantity),
		Currency:    product.Currency,
		TierApplied: tiered,
	}
	if variant != nil {
		id := variant.ID
		quote.VariantID = &id
		quote.SKU = variant.SKU
	}
	return quote, nil
}
