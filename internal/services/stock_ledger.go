package services

import (
	"fmt"

	"github.com/millbrook-supply/api/internal/domain"
)

// ApplyStockDelta computes a new stock level from a bounded adjustment.
// Deltas must be positive; direction decides the sign. A subtraction larger
// than the current level returns ErrInsufficientStock and leaves the level
// unchanged for the caller.
func ApplyStockDelta(current int, direction domain.AdjustDirection, delta int) (int, error) {
	if delta <= 0 {
		return current, fmt.Errorf("%w: delta %d", ErrInvalidAdjustment, delta)
	}
	switch direction {
	case domain.AdjustAdd:
		return current + delta, nil
	case domain.AdjustSubtract:
		if delta > current {
			return current, fmt.Errorf("%w: have %d, want %d", ErrInsufficientStock, current, delta)
		}
		return current - delta, nil
	default:
		return current, fmt.Errorf("%w: direction %q", ErrInvalidAdjustment, direction)
	}
}

// IsLowStock reports whether a level sits at or below the threshold. Low
// stock is always derived from the current level, never stored.
func IsLowStock(level, threshold int) bool {
	return level <= threshold
}
