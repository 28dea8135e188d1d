package services

import (
	"testing"
	"time"

	"github.com/millbrook-supply/api/internal/domain"
)

func tieredProduct() domain.Product {
	return domain.Product{
		ID:        "prod_widget",
		SKU:       "WID-1",
		BasePrice: 1999,
		Currency:  "USD",
		Stock:     10_000,
		BulkPricingTiers: []domain.BulkPricingTier{
			{ProductID: "prod_widget", MinQuantity: 20, Price: 1799},
			{ProductID: "prod_widget", MinQuantity: 50, Price: 1599},
		},
	}
}

func TestEffectiveUnitPriceTierBoundaries(t *testing.T) {
	product := tieredProduct()
	cases := []struct {
		quantity int
		want     int64
		tiered   bool
	}{
		{1, 1999, false},
		{10, 1999, false},
		{19, 1999, false},
		{20, 1799, true},
		{49, 1799, true},
		{50, 1599, true},
		{1000, 1599, true},
	}
	for _, tc := range cases {
		got, tiered := EffectiveUnitPrice(product, nil, tc.quantity)
		if got != tc.want || tiered != tc.tiered {
			t.Fatalf("quantity %d: got (%d, %v), want (%d, %v)", tc.quantity, got, tiered, tc.want, tc.tiered)
		}
	}
}

func TestEffectiveUnitPriceVariantOverridesTiers(t *testing.T) {
	product := tieredProduct()
	variant := &domain.ProductVariant{ID: "var_red", ProductID: product.ID, SKU: "WID-1-R", Price: 2499}

	got, tiered := EffectiveUnitPrice(product, variant, 1000)
	if got != 2499 {
		t.Fatalf("variant price not honoured: got %d", got)
	}
	if tiered {
		t.Fatalf("variant path must not report a tier")
	}
}

func TestEffectiveUnitPriceTierOrderIndependent(t *testing.T) {
	product := tieredProduct()
	reversed := product
	reversed.BulkPricingTiers = []domain.BulkPricingTier{
		product.BulkPricingTiers[1],
		product.BulkPricingTiers[0],
	}
	for _, quantity := range []int{1, 20, 49, 50, 75} {
		a, _ := EffectiveUnitPrice(product, nil, quantity)
		b, _ := EffectiveUnitPrice(reversed, nil, quantity)
		if a != b {
			t.Fatalf("quantity %d: tier order changed price: %d vs %d", quantity, a, b)
		}
	}
}

func TestEffectiveUnitPriceDuplicateMinQuantityTakesLowerPrice(t *testing.T) {
	product := tieredProduct()
	product.BulkPricingTiers = append(product.BulkPricingTiers, domain.BulkPricingTier{
		ProductID: product.ID, MinQuantity: 50, Price: 1499,
	})
	got, _ := EffectiveUnitPrice(product, nil, 60)
	if got != 1499 {
		t.Fatalf("tie on min quantity must take the lower price, got %d", got)
	}
}

func TestEffectiveUnitPriceNoTiersFallsBackToBase(t *testing.T) {
	product := tieredProduct()
	product.BulkPricingTiers = nil
	got, tiered := EffectiveUnitPrice(product, nil, 500)
	if got != 1999 || tiered {
		t.Fatalf("got (%d, %v), want (1999, false)", got, tiered)
	}
}

func TestCartTotalAndItemCount(t *testing.T) {
	now := time.Now()
	cart := domain.Cart{
		Items: []domain.CartItem{
			{ID: "a", Quantity: 2, UnitPrice: 1999, AddedAt: now},
			{ID: "b", Quantity: 50, UnitPrice: 1599, AddedAt: now},
		},
	}
	if got := CartTotal(cart); got != 2*1999+50*1599 {
		t.Fatalf("total = %d", got)
	}
	if got := CartItemCount(cart); got != 52 {
		t.Fatalf("count = %d", got)
	}
	if got := CartTotal(domain.Cart{}); got != 0 {
		t.Fatalf("empty cart total = %d", got)
	}
}
