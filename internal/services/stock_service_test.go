package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/millbrook-supply/api/internal/domain"
	"github.com/millbrook-supply/api/internal/repositories"
)

type capturedEvents struct {
	events []domain.StockEvent
	fail   error
}

func (c *capturedEvents) PublishStockEvent(_ context.Context, event domain.StockEvent) error {
	if c.fail != nil {
		return c.fail
	}
	c.events = append(c.events, event)
	return nil
}

func stockCatalog(level int) *stubCatalog {
	catalog := fixedCatalog()
	catalog.getProduct = func(_ context.Context, productID string) (domain.Product, error) {
		if productID != "prod_widget" {
			return domain.Product{}, repositories.NewStoreError(repositories.ErrorNotFound, "GetProduct", "product not found", nil)
		}
		p := tieredProduct()
		p.Stock = level
		p.LowStockLevel = 5
		return p, nil
	}
	catalog.adjustProductStock = func(_ context.Context, _ string, delta int, _ time.Time) (int, error) {
		next := level + delta
		if next < 0 {
			return 0, repositories.NewStoreError(repositories.ErrorConflict, "AdjustProductStock", "stock floor", nil)
		}
		return next, nil
	}
	return catalog
}

func newTestStockService(t *testing.T, catalog repositories.CatalogRepository, events repositories.StockEventPublisher) StockService {
	t.Helper()
	svc, err := NewStockService(StockServiceDeps{
		Catalog: catalog,
		Events:  events,
		Clock:   func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewStockService: %v", err)
	}
	return svc
}

func TestStockServiceApplyAdd(t *testing.T) {
	events := &capturedEvents{}
	svc := newTestStockService(t, stockCatalog(10), events)

	snap, err := svc.Apply(context.Background(), domain.StockAdjustment{
		ProductID: "prod_widget", Delta: 5, Direction: domain.AdjustAdd, Reason: "restock",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if snap.Stock != 15 || snap.LowStock {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(events.events) != 1 || events.events[0].Reason != "restock" {
		t.Fatalf("events = %+v", events.events)
	}
}

func TestStockServiceApplySubtractToLowStock(t *testing.T) {
	svc := newTestStockService(t, stockCatalog(10), nil)

	snap, err := svc.Apply(context.Background(), domain.StockAdjustment{
		ProductID: "prod_widget", Delta: 6, Direction: domain.AdjustSubtract,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if snap.Stock != 4 {
		t.Fatalf("stock = %d", snap.Stock)
	}
	// 4 <= configured low-stock level 5.
	if !snap.LowStock {
		t.Fatalf("low-stock flag not derived")
	}
}

func TestStockServiceApplyInsufficientStock(t *testing.T) {
	svc := newTestStockService(t, stockCatalog(10), nil)

	_, err := svc.Apply(context.Background(), domain.StockAdjustment{
		ProductID: "prod_widget", Delta: 11, Direction: domain.AdjustSubtract,
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("want ErrInsufficientStock, got %v", err)
	}
}

func TestStockServiceApplyRejectsNonPositiveDelta(t *testing.T) {
	svc := newTestStockService(t, stockCatalog(10), nil)

	_, err := svc.Apply(context.Background(), domain.StockAdjustment{
		ProductID: "prod_widget", Delta: 0, Direction: domain.AdjustAdd,
	})
	if !errors.Is(err, ErrInvalidAdjustment) {
		t.Fatalf("want ErrInvalidAdjustment, got %v", err)
	}
}

func TestStockServiceApplyMapsGuardedConflict(t *testing.T) {
	catalog := stockCatalog(10)
	catalog.adjustProductStock = func(_ context.Context, _ string, _ int, _ time.Time) (int, error) {
		return 0, repositories.NewStoreError(repositories.ErrorConflict, "AdjustProductStock", "stock floor", nil)
	}
	svc := newTestStockService(t, catalog, nil)

	_, err := svc.Apply(context.Background(), domain.StockAdjustment{
		ProductID: "prod_widget", Delta: 1, Direction: domain.AdjustSubtract,
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("want ErrInsufficientStock on store conflict, got %v", err)
	}
}

func TestStockServiceApplySurvivesPublishFailure(t *testing.T) {
	events := &capturedEvents{fail: errors.New("broker down")}
	svc := newTestStockService(t, stockCatalog(10), events)

	snap, err := svc.Apply(context.Background(), domain.StockAdjustment{
		ProductID: "prod_widget", Delta: 1, Direction: domain.AdjustAdd,
	})
	if err != nil {
		t.Fatalf("publish failure must not fail the adjustment: %v", err)
	}
	if snap.Stock != 11 {
		t.Fatalf("stock = %d", snap.Stock)
	}
}
