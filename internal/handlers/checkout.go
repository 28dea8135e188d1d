package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/millbrook-supply/api/internal/platform/auth"
	"github.com/millbrook-supply/api/internal/platform/httpx"
	"github.com/millbrook-supply/api/internal/services"
)

// CheckoutHandlers exposes checkout session creation for authenticated carts.
type CheckoutHandlers struct {
	checkout   services.CheckoutService
	successURL string
	cancelURL  string
}

// NewCheckoutHandlers constructs checkout handlers. The configured URLs are
// defaults; requests may override them.
func NewCheckoutHandlers(checkout services.CheckoutService, successURL, cancelURL string) *CheckoutHandlers {
	return &CheckoutHandlers{checkout: checkout, successURL: successURL, cancelURL: cancelURL}
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(auth.RequireAuth)
	r.Post("/session", h.createSession)
}

func (h *CheckoutHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity.UserID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req createSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	successURL := strings.TrimSpace(req.SuccessURL)
	if successURL == "" {
		successURL = h.successURL
	}
	cancelURL := strings.TrimSpace(req.CancelURL)
	if cancelURL == "" {
		cancelURL = h.cancelURL
	}

	session, err := h.checkout.CreateCheckoutSession(ctx, services.CreateCheckoutSessionCommand{
		OwnerKey:   userOwnerKey(identity.UserID),
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		Locale:     strings.TrimSpace(req.Locale),
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusCreated, sessionResponse{
		SessionID:   session.SessionID,
		PSP:         session.PSP,
		RedirectURL: session.RedirectURL,
		ExpiresAt:   session.ExpiresAt.Format(time.RFC3339),
	})
}

type createSessionRequest struct {
	SuccessURL string `json:"success_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
	Locale     string `json:"locale,omitempty"`
}

type sessionResponse struct {
	SessionID   string `json:"session_id"`
	PSP         string `json:"psp"`
	RedirectURL string `json:"redirect_url"`
	ExpiresAt   string `json:"expires_at"`
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart has no items to check out", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_found", "cart not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout is temporarily unavailable", http.StatusServiceUnavailable))
	}
}
