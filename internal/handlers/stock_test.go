package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/millbrook-supply/api/internal/domain"
	"github.com/millbrook-supply/api/internal/services"
)

type stubStock struct {
	lastAdjustment domain.StockAdjustment
	lastThreshold  int
	snapshot       domain.StockSnapshot
	page           domain.CursorPage[domain.StockSnapshot]
	err            error
}

func (s *stubStock) Apply(_ context.Context, adj domain.StockAdjustment) (domain.StockSnapshot, error) {
	s.lastAdjustment = adj
	if s.err != nil {
		return domain.StockSnapshot{}, s.err
	}
	return s.snapshot, nil
}

func (s *stubStock) ListLowStock(_ context.Context, threshold int, _ domain.Pagination) (domain.CursorPage[domain.StockSnapshot], error) {
	s.lastThreshold = threshold
	if s.err != nil {
		return domain.CursorPage[domain.StockSnapshot]{}, s.err
	}
	return s.page, nil
}

func newStockServer(stub *stubStock) http.Handler {
	return NewRouter(WithAdminRoutes(NewStockHandlers(stub, -1).Routes))
}

func TestAdjustStockEndpoint(t *testing.T) {
	stub := &stubStock{snapshot: domain.StockSnapshot{ProductID: "prod_widget", SKU: "WID-1", Stock: 4, Threshold: 5, LowStock: true}}
	server := newStockServer(stub)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/admin/stock/adjustments",
		adjustStockRequest{ProductID: "prod_widget", Direction: "Subtract", Delta: 6, Reason: "damage"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if stub.lastAdjustment.Direction != domain.AdjustSubtract || stub.lastAdjustment.Delta != 6 {
		t.Fatalf("adjustment = %+v", stub.lastAdjustment)
	}

	var resp stockPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Stock != 4 || !resp.LowStock {
		t.Fatalf("response = %+v", resp)
	}
}

func TestAdjustStockErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{services.ErrInvalidAdjustment, http.StatusBadRequest},
		{services.ErrInsufficientStock, http.StatusConflict},
		{services.ErrProductNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		server := newStockServer(&stubStock{err: tc.err})
		rec := doJSON(t, server, http.MethodPost, "/api/v1/admin/stock/adjustments",
			adjustStockRequest{ProductID: "p", Direction: "add", Delta: 1}, nil)
		if rec.Code != tc.status {
			t.Fatalf("%v: status = %d, want %d", tc.err, rec.Code, tc.status)
		}
	}
}

func TestListLowStockEndpoint(t *testing.T) {
	stub := &stubStock{page: domain.CursorPage[domain.StockSnapshot]{
		Items: []domain.StockSnapshot{
			{ProductID: "prod_widget", SKU: "WID-1", Stock: 2, Threshold: 5, LowStock: true},
		},
		NextPageToken: "50",
	}}
	server := newStockServer(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stock/low?threshold=5&page_size=50", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if stub.lastThreshold != 5 {
		t.Fatalf("threshold = %d", stub.lastThreshold)
	}
	var resp lowStockResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.NextPageToken != "50" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestListLowStockDefaultsToConfiguredThreshold(t *testing.T) {
	stub := &stubStock{lastThreshold: -99}
	server := newStockServer(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stock/low", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	// -1 means per-product configured level.
	if stub.lastThreshold != -1 {
		t.Fatalf("threshold = %d", stub.lastThreshold)
	}
}
