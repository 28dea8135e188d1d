package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/millbrook-supply/api/internal/domain"
	"github.com/millbrook-supply/api/internal/platform/httpx"
	"github.com/millbrook-supply/api/internal/platform/pagination"
	"github.com/millbrook-supply/api/internal/services"
)

// StockHandlers exposes the admin stock endpoints.
type StockHandlers struct {
	stock            services.StockService
	defaultThreshold int
}

// NewStockHandlers constructs handlers over the stock service. The default
// threshold applies when the low-stock listing gives none; a negative value
// means each product's own configured level.
func NewStockHandlers(stock services.StockService, defaultThreshold int) *StockHandlers {
	return &StockHandlers{stock: stock, defaultThreshold: defaultThreshold}
}

// Routes wires the /admin/stock endpoints onto the provided router.
func (h *StockHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stock/adjustments", h.adjust)
	r.Get("/stock/low", h.listLow)
}

func (h *StockHandlers) adjust(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req adjustStockRequest
	if !decodeBody(w, r, &req) {
		return
	}

	direction := domain.AdjustDirection(strings.ToLower(strings.TrimSpace(req.Direction)))
	snapshot, err := h.stock.Apply(ctx, domain.StockAdjustment{
		ProductID: strings.TrimSpace(req.ProductID),
		VariantID: req.VariantID,
		Delta:     req.Delta,
		Direction: direction,
		Reason:    strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeStockError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildStockPayload(snapshot))
}

func (h *StockHandlers) listLow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	threshold := h.defaultThreshold
	if raw := query.Get("threshold"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "threshold must be a non-negative integer", http.StatusBadRequest))
			return
		}
		threshold = parsed
	}

	params, err := pagination.FromQuery(query)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be a positive integer", http.StatusBadRequest))
		return
	}

	result, err := h.stock.ListLowStock(ctx, threshold, domain.Pagination{
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	})
	if err != nil {
		writeStockError(ctx, w, err)
		return
	}

	items := make([]stockPayload, 0, len(result.Items))
	for _, snapshot := range result.Items {
		items = append(items, buildStockPayload(snapshot))
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, lowStockResponse{
		Items:         items,
		NextPageToken: result.NextPageToken,
	})
}

type adjustStockRequest struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id,omitempty"`
	Direction string  `json:"direction"`
	Delta     int     `json:"delta"`
	Reason    string  `json:"reason,omitempty"`
}

type stockPayload struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id,omitempty"`
	SKU       string  `json:"sku"`
	Stock     int     `json:"stock"`
	Threshold int     `json:"threshold"`
	LowStock  bool    `json:"low_stock"`
}

type lowStockResponse struct {
	Items         []stockPayload `json:"items"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

func buildStockPayload(snapshot domain.StockSnapshot) stockPayload {
	return stockPayload{
		ProductID: snapshot.ProductID,
		VariantID: snapshot.VariantID,
		SKU:       snapshot.SKU,
		Stock:     snapshot.Stock,
		Threshold: snapshot.Threshold,
		LowStock:  snapshot.LowStock,
	}
}

func writeStockError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidAdjustment):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_adjustment", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", "stock cannot go below zero", http.StatusConflict))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("stock_unavailable", "stock is temporarily unavailable", http.StatusServiceUnavailable))
	}
}
