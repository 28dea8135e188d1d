package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/millbrook-supply/api/internal/platform/httpx"
	"github.com/millbrook-supply/api/internal/platform/textutil"
	"github.com/millbrook-supply/api/internal/services"
)

// PricingHandlers exposes the price quote endpoint.
type PricingHandlers struct {
	pricing services.PricingService
}

// NewPricingHandlers constructs handlers over the pricing service.
func NewPricingHandlers(pricing services.PricingService) *PricingHandlers {
	return &PricingHandlers{pricing: pricing}
}

// Routes wires the /products endpoints onto the provided router.
func (h *PricingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{productID}", h.show)
	r.Get("/{productID}/price", h.quote)
}

// show answers GET /products/{id} with the product, its variants, and its
// bulk pricing tiers.
func (h *PricingHandlers) show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))

	product, err := h.pricing.GetProduct(ctx, productID)
	if err != nil {
		writePricingError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, productResponseFrom(product))
}

// quote answers GET /products/{id}/price?quantity=N&attr.size=M&attr.color=red.
// Attribute selections arrive as attr.<name> query parameters.
func (h *PricingHandlers) quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))

	quantity := 1
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity must be an integer", http.StatusBadRequest))
			return
		}
		quantity = parsed
	}

	selected := map[string]string{}
	for key, values := range r.URL.Query() {
		if !strings.HasPrefix(key, "attr.") || len(values) == 0 {
			continue
		}
		name := strings.TrimPrefix(key, "attr.")
		if name == "" {
			continue
		}
		selected[name] = values[0]
	}

	quote, err := h.pricing.Quote(ctx, services.PriceQuoteCommand{
		ProductID: productID,
		Quantity:  quantity,
		Selected:  textutil.NormalizeAttributes(selected),
	})
	if err != nil {
		writePricingError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, quoteResponse{
		ProductID:   quote.ProductID,
		VariantID:   quote.VariantID,
		SKU:         quote.SKU,
		Quantity:    quote.Quantity,
		UnitPrice:   quote.UnitPrice,
		LineTotal:   quote.LineTotal,
		Currency:    quote.Currency,
		TierApplied: quote.TierApplied,
	})
}

type productResponse struct {
	ID               string                `json:"id"`
	Name             string                `json:"name"`
	SKU              string                `json:"sku"`
	BasePrice        int64                 `json:"base_price"`
	Currency         string                `json:"currency"`
	MinOrderQuantity int                   `json:"min_order_quantity"`
	Stock            int                   `json:"stock"`
	Variants         []variantResponse     `json:"variants,omitempty"`
	BulkPricingTiers []pricingTierResponse `json:"bulk_pricing_tiers,omitempty"`
}

type variantResponse struct {
	ID         string            `json:"id"`
	SKU        string            `json:"sku"`
	Price      int64             `json:"price"`
	Stock      int               `json:"stock"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type pricingTierResponse struct {
	MinQuantity int   `json:"min_quantity"`
	Price       int64 `json:"price"`
}

func productResponseFrom(product services.Product) productResponse {
	resp := productResponse{
		ID:               product.ID,
		Name:             product.Name,
		SKU:              product.SKU,
		BasePrice:        product.BasePrice,
		Currency:         product.Currency,
		MinOrderQuantity: product.MinOrderQuantity,
		Stock:            product.Stock,
	}
	for _, variant := range product.Variants {
		resp.Variants = append(resp.Variants, variantResponse{
			ID:         variant.ID,
			SKU:        variant.SKU,
			Price:      variant.Price,
			Stock:      variant.Stock,
			Attributes: variant.Attributes,
		})
	}
	for _, tier := range product.BulkPricingTiers {
		resp.BulkPricingTiers = append(resp.BulkPricingTiers, pricingTierResponse{
			MinQuantity: tier.MinQuantity,
			Price:       tier.Price,
		})
	}
	return resp
}

type quoteResponse struct {
	ProductID   string  `json:"product_id"`
	VariantID   *string `json:"variant_id,omitempty"`
	SKU         string  `json:"sku"`
	Quantity    int     `json:"quantity"`
	UnitPrice   int64   `json:"unit_price"`
	LineTotal   int64   `json:"line_total"`
	Currency    string  `json:"currency"`
	TierApplied bool    `json:"tier_applied"`
}

func writePricingError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrVariantNotSelected):
		httpx.WriteError(ctx, w, httpx.NewError("variant_not_selected", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrVariantNoMatch):
		httpx.WriteError(ctx, w, httpx.NewError("variant_no_match", "no variant matches the selection", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("pricing_unavailable", "pricing is temporarily unavailable", http.StatusServiceUnavailable))
	}
}
