package services

import (
	"github.com/millbrook-supply/api/internal/domain"
)

// EffectiveUnitPrice computes the unit price for quantity units of product,
// optionally narrowed to a resolved variant.
//
// A variant carries its own committed price, so it wins over any bulk tier.
// Without a variant the best applicable tier applies: the tier with the
// largest MinQuantity not exceeding the quantity, ties broken toward the
// lower price. With no applicable tier the base price stands.
//
// The second return reports whether a bulk tier produced the price.
func EffectiveUnitPrice(product domain.Product, variant *domain.ProductVariant, quantity int) (int64, bool) {
	if variant != nil {
		return variant.Price, false
	}
	tier, ok := bestTier(product.BulkPricingTiers, quantity)
	if !ok {
		return product.BasePrice, false
	}
	return tier.Price, true
}

// bestTier selects the applicable tier for quantity, or reports none.
func bestTier(tiers []domain.BulkPricingTier, quantity int) (domain.BulkPricingTier, bool) {
	var (
		best  domain.BulkPricingTier
		found bool
	)
	for _, tier := range tiers {
		if tier.MinQuantity > quantity {
			continue
		}
		if !found {
			best, found = tier, true
			continue
		}
		if tier.MinQuantity > best.MinQuantity {
			best = tier
			continue
		}
		if tier.MinQuantity == best.MinQuantity && tier.Price < best.Price {
			best = tier
		}
	}
	return best, found
}

// CartTotal sums unit price times quantity over the cart's items. It reads
// only its argument and never re-fetches prices.
func CartTotal(cart domain.Cart) int64 {
	var total int64
	for _, item := range cart.Items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// CartItemCount sums item quantities, counting units rather than lines.
func CartItemCount(cart domain.Cart) int {
	var count int
	for _, item := range cart.Items {
		count += item.Quantity
	}
	return count
}
