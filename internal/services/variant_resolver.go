package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/millbrook-supply/api/internal/domain"
)

// requiredAttributes collects the attribute names a selection must cover,
// derived from the union of attribute keys across the product's variants.
func requiredAttributes(variants []domain.ProductVariant) []string {
	seen := map[string]struct{}{}
	for _, v := range variants {
		for name := range v.Attributes {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveVariant finds the variant whose attributes exactly equal the
// selection. A product without variants resolves to nil with no error.
//
// A selection missing any required attribute yields ErrVariantNotSelected; a
// complete selection matching nothing yields ErrVariantNoMatch. When catalog
// data contains duplicate variants for the same attribute set, the first in
// stored order wins and the collision is logged.
func ResolveVariant(ctx context.Context, log Logger, product domain.Product, selected map[string]string) (*domain.ProductVariant, error) {
	if len(product.Variants) == 0 {
		return nil, nil
	}
	if log == nil {
		log = noopLogger
	}
	for _, name := range requiredAttributes(product.Variants) {
		if _, ok := selected[name]; !ok {
			return nil, fmt.Errorf("%w: attribute %q", ErrVariantNotSelected, name)
		}
	}
	var match *domain.ProductVariant
	for i := range product.Variants {
		if !attributesEqual(product.Variants[i].Attributes, selected) {
			continue
		}
		if match != nil {
			log(ctx, "catalog.variant.duplicate_attributes", map[string]any{
				"product_id": product.ID,
				"kept":       match.ID,
				"ignored":    product.Variants[i].ID,
			})
			continue
		}
		match = &product.Variants[i]
	}
	if match == nil {
		return nil, fmt.Errorf("%w: product %s", ErrVariantNoMatch, product.ID)
	}
	return match, nil
}

func attributesEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for name, value := range a {
		if b[name] != value {
			return false
		}
	}
	return true
}
