package services

import (
	"context"
	"testing"
	"time"

	"github.com/millbrook-supply/api/internal/domain"
	"github.com/millbrook-supply/api/internal/repositories"
)

// memGuard is an in-memory TransitionGuard with first-claim-wins semantics.
type memGuard struct {
	claimed map[string]bool
	fail    error
}

func newMemGuard() *memGuard { return &memGuard{claimed: map[string]bool{}} }

func (g *memGuard) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	if g.fail != nil {
		return false, g.fail
	}
	if g.claimed[key] {
		return false, nil
	}
	g.claimed[key] = true
	return true, nil
}

func seedGuestCart(t *testing.T, svc CartService, quantities ...int) {
	t.Helper()
	for _, quantity := range quantities {
		if _, err := svc.AddItem(context.Background(), AddItemCommand{ProductID: "prod_widget", Quantity: quantity}); err != nil {
			t.Fatalf("seed guest cart: %v", err)
		}
	}
}

func newMergeFixture(t *testing.T) (*CartMergeCoordinator, *CartContext, CartService, CartService, *memGuard) {
	t.Helper()
	guard := newMemGuard()
	coord, err := NewCartMergeCoordinator(CartMergeCoordinatorDeps{Guard: guard})
	if err != nil {
		t.Fatalf("NewCartMergeCoordinator: %v", err)
	}
	guest := newTestCartService(t, newMemCartRepo(), fixedCatalog(), "guest:01A", domain.CartKindGuest)
	user := newTestCartService(t, newMemCartRepo(), fixedCatalog(), "user:u1", domain.CartKindAuth)
	cartCtx, err := NewCartContext(guest)
	if err != nil {
		t.Fatalf("NewCartContext: %v", err)
	}
	return coord, cartCtx, guest, user, guard
}

func TestMergeMovesItemsAndClearsGuest(t *testing.T) {
	coord, cartCtx, guest, user, _ := newMergeFixture(t)
	seedGuestCart(t, guest, 5)

	if err := coord.Merge(context.Background(), cartCtx, guest, user); err != nil {
		t.Fatalf("merge: %v", err)
	}

	userCart, err := user.Load(context.Background())
	if err != nil {
		t.Fatalf("load user cart: %v", err)
	}
	if CartItemCount(userCart) != 5 {
		t.Fatalf("user cart count = %d", CartItemCount(userCart))
	}
	guestCart, err := guest.Load(context.Background())
	if err != nil {
		t.Fatalf("load guest cart: %v", err)
	}
	if len(guestCart.Items) != 0 {
		t.Fatalf("guest cart not cleared: %+v", guestCart.Items)
	}
	if cartCtx.Active() != user {
		t.Fatalf("context not swapped to user cart")
	}
}

func TestMergeCoalescesIntoExistingUserLines(t *testing.T) {
	coord, cartCtx, guest, user, _ := newMergeFixture(t)
	seedGuestCart(t, guest, 15)
	if _, err := user.AddItem(context.Background(), AddItemCommand{ProductID: "prod_widget", Quantity: 10}); err != nil {
		t.Fatalf("seed user cart: %v", err)
	}

	if err := coord.Merge(context.Background(), cartCtx, guest, user); err != nil {
		t.Fatalf("merge: %v", err)
	}

	userCart, _ := user.Load(context.Background())
	if len(userCart.Items) != 1 || userCart.Items[0].Quantity != 25 {
		t.Fatalf("merged cart = %+v", userCart.Items)
	}
	// 25 units crossed the 20-unit tier during the merge adds.
	if userCart.Items[0].UnitPrice != 1799 {
		t.Fatalf("merged line price = %d", userCart.Items[0].UnitPrice)
	}
}

func TestMergeRunsOncePerTransition(t *testing.T) {
	coord, cartCtx, guest, user, guard := newMergeFixture(t)
	seedGuestCart(t, guest, 3)

	if err := coord.Merge(context.Background(), cartCtx, guest, user); err != nil {
		t.Fatalf("first merge: %v", err)
	}
	// Re-seed the guest cart; the replayed transition must not move it again.
	seedGuestCart(t, guest, 7)
	if err := coord.Merge(context.Background(), cartCtx, guest, user); err != nil {
		t.Fatalf("second merge: %v", err)
	}

	userCart, _ := user.Load(context.Background())
	if CartItemCount(userCart) != 3 {
		t.Fatalf("replayed merge moved items: count = %d", CartItemCount(userCart))
	}
	guestCart, _ := guest.Load(context.Background())
	if CartItemCount(guestCart) != 7 {
		t.Fatalf("skipped merge must not touch the guest cart: count = %d", CartItemCount(guestCart))
	}
	if len(guard.claimed) != 1 {
		t.Fatalf("guard claims = %d", len(guard.claimed))
	}
	if cartCtx.Active() != user {
		t.Fatalf("skipped merge must still swap to the user cart")
	}
}

func TestMergeContinuesPastFailedLineInGuestOrder(t *testing.T) {
	guard := newMemGuard()
	coord, err := NewCartMergeCoordinator(CartMergeCoordinatorDeps{Guard: guard})
	if err != nil {
		t.Fatalf("NewCartMergeCoordinator: %v", err)
	}

	// The guest catalog sells both products; the user catalog dropped
	// prod_gadget, so the first transferred line fails and the second one
	// must still move.
	guestCatalog := &stubCatalog{
		getProduct: func(_ context.Context, productID string) (domain.Product, error) {
			switch productID {
			case "prod_widget":
				return tieredProduct(), nil
			case "prod_gadget":
				gadget := tieredProduct()
				gadget.ID = "prod_gadget"
				gadget.BulkPricingTiers = nil
				return gadget, nil
			default:
				return domain.Product{}, repositories.NewStoreError(repositories.ErrorNotFound, "GetProduct", "product not found", nil)
			}
		},
	}
	guest := newTestCartService(t, newMemCartRepo(), guestCatalog, "guest:01A", domain.CartKindGuest)
	if _, err := guest.AddItem(context.Background(), AddItemCommand{ProductID: "prod_gadget", Quantity: 4}); err != nil {
		t.Fatalf("seed gadget line: %v", err)
	}
	if _, err := guest.AddItem(context.Background(), AddItemCommand{ProductID: "prod_widget", Quantity: 2}); err != nil {
		t.Fatalf("seed widget line: %v", err)
	}

	user := newTestCartService(t, newMemCartRepo(), fixedCatalog(), "user:u1", domain.CartKindAuth)
	cartCtx, err := NewCartContext(guest)
	if err != nil {
		t.Fatalf("NewCartContext: %v", err)
	}

	if err := coord.Merge(context.Background(), cartCtx, guest, user); err != nil {
		t.Fatalf("merge: %v", err)
	}

	userCart, err := user.Load(context.Background())
	if err != nil {
		t.Fatalf("load user cart: %v", err)
	}
	if len(userCart.Items) != 1 || userCart.Items[0].ProductID != "prod_widget" || userCart.Items[0].Quantity != 2 {
		t.Fatalf("user cart after partial failure = %+v", userCart.Items)
	}
	guestCart, _ := guest.Load(context.Background())
	if len(guestCart.Items) != 0 {
		t.Fatalf("guest cart must be cleared after a partial failure: %+v", guestCart.Items)
	}
	if cartCtx.Active() != user {
		t.Fatalf("context must end on the user cart")
	}
}

func TestMergeSkipsEmptyGuestCart(t *testing.T) {
	guard := newMemGuard()
	coord, err := NewCartMergeCoordinator(CartMergeCoordinatorDeps{Guard: guard})
	if err != nil {
		t.Fatalf("NewCartMergeCoordinator: %v", err)
	}

	guestRepo := newMemCartRepo()
	guest := newTestCartService(t, guestRepo, fixedCatalog(), "guest:01A", domain.CartKindGuest)
	user := newTestCartService(t, newMemCartRepo(), fixedCatalog(), "user:u1", domain.CartKindAuth)
	cartCtx, err := NewCartContext(guest)
	if err != nil {
		t.Fatalf("NewCartContext: %v", err)
	}

	if err := coord.Merge(context.Background(), cartCtx, guest, user); err != nil {
		t.Fatalf("merge: %v", err)
	}

	// An empty guest cart must not consume the one-shot transition or touch
	// the guest store beyond the read.
	if len(guard.claimed) != 0 {
		t.Fatalf("guard claims = %v", guard.claimed)
	}
	for _, call := range guestRepo.calls {
		if call == "ClearCart" {
			t.Fatalf("empty guest cart must not be cleared: %v", guestRepo.calls)
		}
	}
	if cartCtx.Active() != user {
		t.Fatalf("context must still swap to the user cart")
	}

	// The transition stays runnable once the guest cart has items.
	seedGuestCart(t, guest, 3)
	if err := coord.Merge(context.Background(), cartCtx, guest, user); err != nil {
		t.Fatalf("second merge: %v", err)
	}
	userCart, _ := user.Load(context.Background())
	if CartItemCount(userCart) != 3 {
		t.Fatalf("user cart count = %d", CartItemCount(userCart))
	}
}

func TestMergeSwallowsItemFailuresAndStillClearsGuest(t *testing.T) {
	guard := newMemGuard()
	coord, err := NewCartMergeCoordinator(CartMergeCoordinatorDeps{Guard: guard})
	if err != nil {
		t.Fatalf("NewCartMergeCoordinator: %v", err)
	}

	guestRepo := newMemCartRepo()
	guest := newTestCartService(t, guestRepo, fixedCatalog(), "guest:01A", domain.CartKindGuest)
	seedGuestCart(t, guest, 2)

	// The user cart's store rejects every write, so each transfer fails.
	userRepo := newMemCartRepo()
	userRepo.failUpsert = repositories.NewStoreError(repositories.ErrorUnavailable, "UpsertItem", "store down", nil)
	user := newTestCartService(t, userRepo, fixedCatalog(), "user:u1", domain.CartKindAuth)

	cartCtx, err := NewCartContext(guest)
	if err != nil {
		t.Fatalf("NewCartContext: %v", err)
	}

	if err := coord.Merge(context.Background(), cartCtx, guest, user); err != nil {
		t.Fatalf("merge must swallow item failures, got %v", err)
	}

	// Lossy by design: the failed line is gone from both carts.
	guestCart, _ := guest.Load(context.Background())
	if len(guestCart.Items) != 0 {
		t.Fatalf("guest cart must be cleared even after failures: %+v", guestCart.Items)
	}
	if cartCtx.Active() != user {
		t.Fatalf("context must end on the user cart")
	}
}
