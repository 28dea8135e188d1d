package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/millbrook-supply/api/internal/domain"
	"github.com/millbrook-supply/api/internal/platform/auth"
	"github.com/millbrook-supply/api/internal/platform/httpx"
	"github.com/millbrook-supply/api/internal/services"
)

// CartFactory yields a CartService bound to one owner key. Handlers derive
// the key per request; everything below the factory is identical for guest
// and authenticated carts.
type CartFactory func(ownerKey string, kind domain.CartKind) (services.CartService, error)

const maxCartBodySize = 16 * 1024

// CartHandlers exposes the guest and authenticated cart endpoints.
type CartHandlers struct {
	factory CartFactory
	merge   *services.CartMergeCoordinator
	newID   func() string
}

// NewCartHandlers constructs cart handlers over the service factory.
func NewCartHandlers(factory CartFactory, merge *services.CartMergeCoordinator) *CartHandlers {
	return &CartHandlers{
		factory: factory,
		merge:   merge,
		newID:   func() string { return ulid.Make().String() },
	}
}

// GuestRoutes wires the anonymous cart endpoints. The cart id returned by
// create is the client's handle; clients persist it locally.
func (h *CartHandlers) GuestRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createGuestCart)
	r.Route("/{cartID}", func(cart chi.Router) {
		cart.Get("/", h.guestHandler(h.getCart))
		cart.Delete("/", h.guestHandler(h.clearCart))
		cart.Post("/items", h.guestHandler(h.addItem))
		cart.Put("/items/{itemID}", h.guestHandler(h.updateItem))
		cart.Delete("/items/{itemID}", h.guestHandler(h.removeItem))
	})
}

// Routes wires the authenticated cart endpoints.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(auth.RequireAuth)
	r.Get("/", h.userHandler(h.getCart))
	r.Delete("/", h.userHandler(h.clearCart))
	r.Post("/items", h.userHandler(h.addItem))
	r.Put("/items/{itemID}", h.userHandler(h.updateItem))
	r.Delete("/items/{itemID}", h.userHandler(h.removeItem))
	r.Post("/merge", h.mergeCarts)
}

type cartOperation func(w http.ResponseWriter, r *http.Request, cart services.CartService)

func (h *CartHandlers) guestHandler(op cartOperation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID := strings.TrimSpace(chi.URLParam(r, "cartID"))
		if cartID == "" {
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "cart id is required", http.StatusBadRequest))
			return
		}
		cart, err := h.factory(guestOwnerKey(cartID), domain.CartKindGuest)
		if err != nil {
			writeCartError(r.Context(), w, err)
			return
		}
		op(w, r, cart)
	}
}

func (h *CartHandlers) userHandler(op cartOperation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok || identity.UserID == "" {
			httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
			return
		}
		cart, err := h.factory(userOwnerKey(identity.UserID), domain.CartKindAuth)
		if err != nil {
			writeCartError(r.Context(), w, err)
			return
		}
		op(w, r, cart)
	}
}

func (h *CartHandlers) createGuestCart(w http.ResponseWriter, r *http.Request) {
	cartID := h.newID()
	cart, err := h.factory(guestOwnerKey(cartID), domain.CartKindGuest)
	if err != nil {
		writeCartError(r.Context(), w, err)
		return
	}
	loaded, err := cart.Load(r.Context())
	if err != nil {
		writeCartError(r.Context(), w, err)
		return
	}
	payload := buildCartPayload(loaded)
	payload.GuestCartID = cartID
	httpx.WriteJSON(r.Context(), w, http.StatusCreated, cartResponse{Cart: payload})
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request, cart services.CartService) {
	loaded, err := cart.Load(r.Context())
	if err != nil {
		writeCartError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(r.Context(), w, http.StatusOK, cartResponse{Cart: buildCartPayload(loaded)})
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request, cart services.CartService) {
	cleared, err := cart.Clear(r.Context())
	if err != nil {
		writeCartError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(r.Context(), w, http.StatusOK, cartResponse{Cart: buildCartPayload(cleared)})
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request, cart services.CartService) {
	var req addItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	updated, err := cart.AddItem(r.Context(), services.AddItemCommand{
		ProductID: strings.TrimSpace(req.ProductID),
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeCartError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(r.Context(), w, http.StatusOK, cartResponse{Cart: buildCartPayload(updated)})
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request, cart services.CartService) {
	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	var req updateQuantityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	updated, err := cart.UpdateQuantity(r.Context(), itemID, req.Quantity)
	if err != nil {
		writeCartError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(r.Context(), w, http.StatusOK, cartResponse{Cart: buildCartPayload(updated)})
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request, cart services.CartService) {
	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	updated, err := cart.RemoveItem(r.Context(), itemID)
	if err != nil {
		writeCartError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(r.Context(), w, http.StatusOK, cartResponse{Cart: buildCartPayload(updated)})
}

// mergeCarts folds the caller's guest cart into their user cart. The guest
// cart id comes from the client that held it before login.
func (h *CartHandlers) mergeCarts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity.UserID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}
	if h.merge == nil {
		httpx.WriteError(ctx, w, httpx.NewError("merge_unavailable", "cart merge is not configured", http.StatusServiceUnavailable))
		return
	}

	var req mergeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	guestCartID := strings.TrimSpace(req.GuestCartID)
	if guestCartID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "guest_cart_id is required", http.StatusBadRequest))
		return
	}

	guest, err := h.factory(guestOwnerKey(guestCartID), domain.CartKindGuest)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	user, err := h.factory(userOwnerKey(identity.UserID), domain.CartKindAuth)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	cartCtx, err := services.NewCartContext(guest)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	if err := h.merge.Merge(ctx, cartCtx, guest, user); err != nil {
		writeCartError(ctx, w, err)
		return
	}

	merged, err := cartCtx.Active().Load(ctx)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, cartResponse{Cart: buildCartPayload(merged)})
}

type addItemRequest struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id,omitempty"`
	Quantity  int     `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type mergeRequest struct {
	GuestCartID string `json:"guest_cart_id"`
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

type cartPayload struct {
	ID          string            `json:"id"`
	GuestCartID string            `json:"guest_cart_id,omitempty"`
	Kind        string            `json:"kind"`
	Currency    string            `json:"currency"`
	Items       []cartItemPayload `json:"items"`
	Total       int64             `json:"total"`
	ItemCount   int               `json:"item_count"`
}

type cartItemPayload struct {
	ID        string  `json:"id"`
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id,omitempty"`
	SKU       string  `json:"sku"`
	Quantity  int     `json:"quantity"`
	UnitPrice int64   `json:"unit_price"`
	LineTotal int64   `json:"line_total"`
}

func buildCartPayload(cart domain.Cart) cartPayload {
	payload := cartPayload{
		ID:        cart.ID,
		Kind:      string(cart.Kind),
		Currency:  cart.Currency,
		Items:     make([]cartItemPayload, 0, len(cart.Items)),
		Total:     services.CartTotal(cart),
		ItemCount: services.CartItemCount(cart),
	}
	for _, item := range cart.Items {
		payload.Items = append(payload.Items, cartItemPayload{
			ID:        item.ID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.UnitPrice * int64(item.Quantity),
		})
	}
	return payload
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCartBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "malformed request body", http.StatusBadRequest))
		return false
	}
	return true
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_found", "cart or item not found", http.StatusNotFound))
	case errors.Is(err, services.ErrInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCartConflict):
		httpx.WriteError(ctx, w, httpx.NewError("cart_conflict", "cart was modified concurrently", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_unavailable", "cart is temporarily unavailable", http.StatusServiceUnavailable))
	}
}

func guestOwnerKey(cartID string) string { return "guest:" + cartID }

func userOwnerKey(userID string) string { return "user:" + userID }
