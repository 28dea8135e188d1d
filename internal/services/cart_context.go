package services

import (
	"fmt"
	"sync"
)

// CartContext holds the cart the rest of the application talks to. Consumers
// call Active and use the returned CartService without knowing whether it is
// guest-backed or user-backed; the active service is swapped exactly once at
// the authentication boundary by the merge coordinator.
type CartContext struct {
	mu     sync.RWMutex
	active CartService
}

// NewCartContext starts the context on the given cart, normally the guest one.
func NewCartContext(initial CartService) (*CartContext, error) {
	if initial == nil {
		return nil, fmt.Errorf("%w: initial cart service is required", ErrCartInvalidInput)
	}
	return &CartContext{active: initial}, nil
}

// Active returns the cart currently in effect.
func (c *CartContext) Active() CartService {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Swap replaces the active cart. Called once per authentication transition.
func (c *CartContext) Swap(next CartService) error {
	if next == nil {
		return fmt.Errorf("%w: cart service is required", ErrCartInvalidInput)
	}
	c.mu.Lock()
	c.active = next
	c.mu.Unlock()
	return nil
}
