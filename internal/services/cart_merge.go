package services

import (
	"context"
	"fmt"
	"time"

	"github.com/millbrook-supply/api/internal/repositories"
)

// CartMergeCoordinatorDeps carries the collaborators required by NewCartMergeCoordinator.
type CartMergeCoordinatorDeps struct {
	Guard  repositories.TransitionGuard
	Logger Logger

	// GuardTTL bounds how long a claimed transition blocks replays. Zero
	// selects a default generous enough for retried logins.
	GuardTTL time.Duration
}

// CartMergeCoordinator folds a guest cart into a user cart when a session
// authenticates, then makes the user cart the active one.
type CartMergeCoordinator struct {
	guard    repositories.TransitionGuard
	guardTTL time.Duration
	log      Logger
}

const defaultMergeGuardTTL = 24 * time.Hour

// NewCartMergeCoordinator validates deps and builds a coordinator.
func NewCartMergeCoordinator(deps CartMergeCoordinatorDeps) (*CartMergeCoordinator, error) {
	if deps.Guard == nil {
		return nil, fmt.Errorf("%w: transition guard is required", ErrCartInvalidInput)
	}
	c := &CartMergeCoordinator{
		guard:    deps.Guard,
		guardTTL: deps.GuardTTL,
		log:      deps.Logger,
	}
	if c.guardTTL <= 0 {
		c.guardTTL = defaultMergeGuardTTL
	}
	if c.log == nil {
		c.log = noopLogger
	}
	return c, nil
}

// Merge runs the one-shot guest-to-user handover. Items move strictly in
// guest-cart order, one completed add before the next begins. A line that
// fails to transfer is logged and dropped; the guest cart is cleared
// regardless, so a partial failure loses those lines rather than leaving a
// half-merged guest cart behind. Whatever happens, cartCtx ends up on the
// user cart.
func (c *CartMergeCoordinator) Merge(ctx context.Context, cartCtx *CartContext, guest, user CartService) error {
	if cartCtx == nil || guest == nil || user == nil {
		return fmt.Errorf("%w: cart context, guest cart and user cart are required", ErrCartInvalidInput)
	}

	key := transitionKey(guest.OwnerKey(), user.OwnerKey())
	guestCart, err := guest.Load(ctx)
	if err != nil {
		c.log(ctx, "cart.merge.guest_load_failed", map[string]any{
			"transition": key,
			"error":      err.Error(),
		})
		return cartCtx.Swap(user)
	}
	if len(guestCart.Items) == 0 {
		// Nothing to move; leave the guard unclaimed so a later login with
		// a refilled guest cart can still run the transition.
		c.log(ctx, "cart.merge.empty_guest", map[string]any{"transition": key})
		return cartCtx.Swap(user)
	}

	acquired, err := c.guard.Acquire(ctx, key, c.guardTTL)
	if err != nil {
		return translateCartRepoError(err)
	}
	if !acquired {
		// A concurrent or earlier login already ran this transition.
		c.log(ctx, "cart.merge.skipped", map[string]any{"transition": key})
		return cartCtx.Swap(user)
	}

	moved := 0
	for _, item := range guestCart.Items {
		_, err := user.AddItem(ctx, AddItemCommand{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
		if err != nil {
			c.log(ctx, "cart.merge.item_failed", map[string]any{
				"transition": key,
				"product_id": item.ProductID,
				"error":      err.Error(),
			})
			continue
		}
		moved++
	}

	if _, err := guest.Clear(ctx); err != nil {
		c.log(ctx, "cart.merge.guest_clear_failed", map[string]any{
			"transition": key,
			"error":      err.Error(),
		})
	}

	c.log(ctx, "cart.merge.completed", map[string]any{
		"transition": key,
		"moved":      moved,
		"total":      len(guestCart.Items),
	})
	return cartCtx.Swap(user)
}

func transitionKey(guestOwner, userOwner string) string {
	return fmt.Sprintf("cart-merge:%s:%s", guestOwner, userOwner)
}
