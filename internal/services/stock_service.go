package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/millbrook-supply/api/internal/domain"
	"github.com/millbrook-supply/api/internal/repositories"
)

// StockServiceDeps carries the collaborators required by NewStockService.
type StockServiceDeps struct {
	Catalog repositories.CatalogRepository
	Events  repositories.StockEventPublisher

	Clock  Clock
	Logger Logger
}

type stockService struct {
	catalog repositories.CatalogRepository
	events  repositories.StockEventPublisher

	clock Clock
	log   Logger
}

// NewStockService validates deps and builds a StockService. The event
// publisher is optional; without one adjustments apply silently.
func NewStockService(deps StockServiceDeps) (StockService, error) {
	if deps.Catalog == nil {
		return nil, fmt.Errorf("%w: catalog repository is required", ErrInvalidAdjustment)
	}
	svc := &stockService{
		catalog: deps.Catalog,
		events:  deps.Events,
		clock:   normalizeClock(deps.Clock),
		log:     deps.Logger,
	}
	if svc.log == nil {
		svc.log = noopLogger
	}
	return svc, nil
}

// Apply reads the current level, validates the bounded delta, and commits the
// guarded write. The store enforces the non-negative floor a second time, so
// a race between the read and the write still cannot drive stock below zero.
func (s *stockService) Apply(ctx context.Context, adj domain.StockAdjustment) (domain.StockSnapshot, error) {
	if adj.ProductID == "" {
		return domain.StockSnapshot{}, fmt.Errorf("%w: product id is required", ErrInvalidAdjustment)
	}

	product, err := s.catalog.GetProduct(ctx, adj.ProductID)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.StockSnapshot{}, fmt.Errorf("%w: %s", ErrProductNotFound, adj.ProductID)
		}
		return domain.StockSnapshot{}, translateCartRepoError(err)
	}

	current := product.Stock
	sku := product.SKU
	threshold := product.LowStockLevel
	if adj.VariantID != nil {
		variant, err := s.catalog.GetVariant(ctx, *adj.VariantID)
		if err != nil {
			if isRepoNotFound(err) {
				return domain.StockSnapshot{}, fmt.Errorf("%w: variant %s", ErrProductNotFound, *adj.VariantID)
			}
			return domain.StockSnapshot{}, translateCartRepoError(err)
		}
		if variant.ProductID != product.ID {
			return domain.StockSnapshot{}, fmt.Errorf("%w: variant %s does not belong to product %s", ErrInvalidAdjustment, variant.ID, product.ID)
		}
		current = variant.Stock
		sku = variant.SKU
	}

	if _, err := ApplyStockDelta(current, adj.Direction, adj.Delta); err != nil {
		return domain.StockSnapshot{}, err
	}

	delta := adj.Delta
	if adj.Direction == domain.AdjustSubtract {
		delta = -delta
	}

	now := s.clock()
	var level int
	if adj.VariantID != nil {
		level, err = s.catalog.AdjustVariantStock(ctx, *adj.VariantID, delta, now)
	} else {
		level, err = s.catalog.AdjustProductStock(ctx, adj.ProductID, delta, now)
	}
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			// Lost the race against a concurrent subtraction.
			return domain.StockSnapshot{}, fmt.Errorf("%w: concurrent adjustment", ErrInsufficientStock)
		}
		return domain.StockSnapshot{}, translateCartRepoError(err)
	}

	snapshot := domain.StockSnapshot{
		ProductID:  adj.ProductID,
		VariantID:  adj.VariantID,
		SKU:        sku,
		Stock:      level,
		Threshold:  threshold,
		LowStock:   IsLowStock(level, threshold),
		AdjustedAt: now,
	}

	s.publish(ctx, adj, snapshot)
	return snapshot, nil
}

// ListLowStock pages through products at or below the threshold.
func (s *stockService) ListLowStock(ctx context.Context, threshold int, page domain.Pagination) (domain.CursorPage[domain.StockSnapshot], error) {
	out, err := s.catalog.ListLowStock(ctx, threshold, page)
	if err != nil {
		return domain.CursorPage[domain.StockSnapshot]{}, translateCartRepoError(err)
	}
	return out, nil
}

func (s *stockService) publish(ctx context.Context, adj domain.StockAdjustment, snap domain.StockSnapshot) {
	if s.events == nil {
		return
	}
	event := domain.StockEvent{
		Type:       "stock.adjusted",
		ProductID:  snap.ProductID,
		VariantID:  snap.VariantID,
		SKU:        snap.SKU,
		Delta:      adj.Delta,
		Direction:  adj.Direction,
		Stock:      snap.Stock,
		LowStock:   snap.LowStock,
		Reason:     adj.Reason,
		OccurredAt: snap.AdjustedAt,
	}
	if err := s.events.PublishStockEvent(ctx, event); err != nil {
		// Publishing is best effort; the adjustment already committed.
		s.log(ctx, "stock.event.publish_failed", map[string]any{
			"product_id": snap.ProductID,
			"error":      err.Error(),
		})
	}
}
