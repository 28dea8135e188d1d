package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/millbrook-supply/api/internal/platform/requestctx"
)

func newTestCodec(t *testing.T) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec("test-secret", "millbrook-supply", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	return codec
}

func TestTokenCodecRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue(requestctx.Identity{UserID: "u1", Email: "u1@example.com", Roles: []string{"Admin"}})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	identity, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if identity.UserID != "u1" || identity.Email != "u1@example.com" {
		t.Fatalf("identity = %+v", identity)
	}
	if !identity.HasRole("admin") {
		t.Fatalf("roles must be normalised: %v", identity.Roles)
	}
}

func TestTokenCodecRejectsExpired(t *testing.T) {
	codec := newTestCodec(t)
	codec.clock = func() time.Time { return time.Now().UTC().Add(-2 * time.Hour) }
	token, err := codec.Issue(requestctx.Identity{UserID: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	codec.clock = func() time.Time { return time.Now().UTC() }
	if _, err := codec.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("want ErrTokenExpired, got %v", err)
	}
}

func TestTokenCodecRejectsWrongSecret(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewTokenCodec("another-secret", "millbrook-supply", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	token, err := other.Issue(requestctx.Identity{UserID: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := codec.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("want ErrTokenInvalid, got %v", err)
	}
}

func TestMiddlewareAttachesIdentity(t *testing.T) {
	codec := newTestCodec(t)
	token, err := codec.Issue(requestctx.Identity{UserID: "u1", Roles: []string{"user"}})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var got requestctx.Identity
	handler := Middleware(codec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = requestctx.IdentityFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if got.UserID != "u1" {
		t.Fatalf("identity = %+v", got)
	}
}

func TestMiddlewareRejectsBadToken(t *testing.T) {
	codec := newTestCodec(t)
	handler := Middleware(codec)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequireAuthAndRoles(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/admin/stock", nil)
	rec := httptest.NewRecorder()
	RequireAuth(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous RequireAuth status = %d", rec.Code)
	}

	ctx := requestctx.WithIdentity(req.Context(), requestctx.Identity{UserID: "u1", Roles: []string{"user"}})
	rec = httptest.NewRecorder()
	RequireRoles(RoleAdmin)(next).ServeHTTP(rec, req.WithContext(ctx))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("user role against admin gate status = %d", rec.Code)
	}

	ctx = requestctx.WithIdentity(req.Context(), requestctx.Identity{UserID: "u2", Roles: []string{"admin"}})
	rec = httptest.NewRecorder()
	RequireRoles(RoleAdmin)(next).ServeHTTP(rec, req.WithContext(ctx))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("admin role status = %d", rec.Code)
	}
}
