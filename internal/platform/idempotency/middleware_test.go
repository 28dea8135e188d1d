package idempotency

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newCountingHandler(status int, body string) (*int, http.Handler) {
	calls := 0
	return &calls, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("X-Handler", "live")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func doRequest(handler http.Handler, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/stock/adjustments", strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareReplaysStoredResponse(t *testing.T) {
	calls, inner := newCountingHandler(http.StatusCreated, `{"ok":true}`)
	handler := Middleware(NewMemoryStore(), time.Minute)(inner)

	first := doRequest(handler, "key-1", `{"delta":5}`)
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d", first.Code)
	}
	if first.Header().Get(replayHeaderName) != "" {
		t.Fatal("first response must not be marked as replay")
	}

	second := doRequest(handler, "key-1", `{"delta":5}`)
	if second.Code != http.StatusCreated {
		t.Fatalf("second status = %d", second.Code)
	}
	if second.Header().Get(replayHeaderName) != "true" {
		t.Fatal("second response should be a replay")
	}
	if second.Body.String() != `{"ok":true}` {
		t.Fatalf("replayed body = %q", second.Body.String())
	}
	if *calls != 1 {
		t.Fatalf("handler calls = %d, want 1", *calls)
	}
}

func TestMiddlewareRejectsKeyReuseWithDifferentBody(t *testing.T) {
	_, inner := newCountingHandler(http.StatusCreated, `{"ok":true}`)
	handler := Middleware(NewMemoryStore(), time.Minute)(inner)

	if rec := doRequest(handler, "key-1", `{"delta":5}`); rec.Code != http.StatusCreated {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec := doRequest(handler, "key-1", `{"delta":10}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestMiddlewarePassesThroughWithoutKey(t *testing.T) {
	calls, inner := newCountingHandler(http.StatusOK, "ok")
	handler := Middleware(NewMemoryStore(), time.Minute)(inner)

	doRequest(handler, "", "a")
	doRequest(handler, "", "a")
	if *calls != 2 {
		t.Fatalf("handler calls = %d, want 2", *calls)
	}
}

func TestMiddlewareIgnoresReadRequests(t *testing.T) {
	calls, inner := newCountingHandler(http.StatusOK, "ok")
	handler := Middleware(NewMemoryStore(), time.Minute)(inner)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/p1/price", nil)
	req.Header.Set("Idempotency-Key", "key-1")
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}
	if *calls != 2 {
		t.Fatalf("handler calls = %d, want 2", *calls)
	}
}

func TestMemoryStoreFingerprintGuard(t *testing.T) {
	store := NewMemoryStore()
	ctx := httptest.NewRequest(http.MethodPost, "/", nil).Context()

	res, err := store.Reserve(ctx, "k", "fp-a", time.Minute)
	if err != nil || res.State != ReservationNew {
		t.Fatalf("reserve = %+v, %v", res, err)
	}
	if _, err := store.Reserve(ctx, "k", "fp-b", time.Minute); err != ErrFingerprintMismatch {
		t.Fatalf("err = %v, want fingerprint mismatch", err)
	}
	if res, err := store.Reserve(ctx, "k", "fp-a", time.Minute); err != nil || res.State != ReservationPending {
		t.Fatalf("reserve pending = %+v, %v", res, err)
	}

	if err := store.SaveResponse(ctx, "k", Record{Fingerprint: "fp-a", Status: 201}, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	res, err = store.Reserve(ctx, "k", "fp-a", time.Minute)
	if err != nil || res.State != ReservationCompleted || res.Record.Status != 201 {
		t.Fatalf("reserve completed = %+v, %v", res, err)
	}

	if err := store.Release(ctx, "k"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if res, err := store.Reserve(ctx, "k", "fp-b", time.Minute); err != nil || res.State != ReservationNew {
		t.Fatalf("reserve after release = %+v, %v", res, err)
	}
}
