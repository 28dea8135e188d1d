package services

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/millbrook-supply/api/internal/repositories"
)

var (
	// ErrCartInvalidInput flags rejected command input, quantity bounds included.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartNotFound indicates the cart or one of its items does not exist.
	ErrCartNotFound = errors.New("cart: not found")
	// ErrCartConflict indicates a concurrent write collided with the request.
	ErrCartConflict = errors.New("cart: conflict")
	// ErrCartUnavailable indicates the backing store could not serve the request.
	ErrCartUnavailable = errors.New("cart: unavailable")

	// ErrVariantNotSelected indicates a required attribute has no chosen value yet.
	ErrVariantNotSelected = errors.New("pricing: variant not selected")
	// ErrVariantNoMatch indicates a complete selection that matches no variant.
	ErrVariantNoMatch = errors.New("pricing: no variant matches selection")

	// ErrProductNotFound indicates the referenced product does not exist.
	ErrProductNotFound = errors.New("catalog: product not found")

	// ErrInsufficientStock indicates a subtraction larger than the level on hand.
	// The stored value is left unchanged.
	ErrInsufficientStock = errors.New("stock: insufficient stock")
	// ErrInvalidAdjustment indicates a non-positive adjustment delta.
	ErrInvalidAdjustment = errors.New("stock: invalid adjustment")

	// ErrCheckoutEmptyCart indicates checkout was requested on an empty cart.
	ErrCheckoutEmptyCart = errors.New("checkout: cart is empty")
	// ErrCheckoutUnavailable indicates the payment provider rejected or failed the request.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
)

// Clock yields the current time. Services normalize it to UTC before storing.
type Clock func() time.Time

// IDGenerator mints identifiers for new records.
type IDGenerator func() string

// Logger records service events. Implementations must tolerate a nil fields map.
type Logger func(ctx context.Context, event string, fields map[string]any)

func defaultIDGenerator() string { return ulid.Make().String() }

func noopLogger(context.Context, string, map[string]any) {}

func normalizeClock(clock Clock) Clock {
	if clock == nil {
		return func() time.Time { return time.Now().UTC() }
	}
	return func() time.Time { return clock().UTC() }
}

// translateCartRepoError maps store errors onto the cart sentinel set.
func translateCartRepoError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCartNotFound
		case repoErr.IsConflict():
			return ErrCartConflict
		case repoErr.IsUnavailable():
			return ErrCartUnavailable
		}
	}
	return ErrCartUnavailable
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}
