package gormrepo

import (
	"encoding/json"
	"sort"

	"github.com/millbrook-supply/api/internal/domain"
	"github.com/millbrook-supply/api/internal/platform/textutil"
)

func cartFromRecord(rec cartRecord) domain.Cart {
	cart := domain.Cart{
		ID:        rec.ID,
		OwnerKey:  rec.OwnerKey,
		Kind:      domain.CartKind(rec.Kind),
		Currency:  rec.Currency,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if len(rec.Items) == 0 {
		return cart
	}
	items := make([]domain.CartItem, 0, len(rec.Items))
	for _, item := range rec.Items {
		items = append(items, domain.CartItem{
			ID:        item.ID,
			CartID:    item.CartID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Currency:  item.Currency,
			AddedAt:   item.AddedAt,
			UpdatedAt: item.UpdatedAt,
		})
	}
	// Stable line order regardless of how the driver returns rows.
	sort.Slice(items, func(i, j int) bool { return items[i].AddedAt.Before(items[j].AddedAt) })
	cart.Items = items
	return cart
}

func productFromRecord(rec productRecord) domain.Product {
	product := domain.Product{
		ID:               rec.ID,
		Name:             rec.Name,
		SKU:              rec.SKU,
		BasePrice:        rec.BasePrice,
		Currency:         rec.Currency,
		MinOrderQuantity: rec.MinOrderQuantity,
		Stock:            rec.Stock,
		LowStockLevel:    rec.LowStockLevel,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
	for _, v := range rec.Variants {
		product.Variants = append(product.Variants, variantFromRecord(v))
	}
	for _, t := range rec.Tiers {
		product.BulkPricingTiers = append(product.BulkPricingTiers, domain.BulkPricingTier{
			ProductID:   t.ProductID,
			MinQuantity: t.MinQuantity,
			Price:       t.Price,
		})
	}
	return product
}

func variantFromRecord(rec productVariantRecord) domain.ProductVariant {
	variant := domain.ProductVariant{
		ID:        rec.ID,
		ProductID: rec.ProductID,
		SKU:       rec.SKU,
		Price:     rec.Price,
		Stock:     rec.Stock,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if rec.Attributes != "" {
		// A malformed attributes blob resolves as no attributes rather than
		// failing the whole read.
		var attrs map[string]string
		_ = json.Unmarshal([]byte(rec.Attributes), &attrs)
		variant.Attributes = textutil.NormalizeAttributes(attrs)
	}
	return variant
}
