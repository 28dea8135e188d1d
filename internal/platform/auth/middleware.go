package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/millbrook-supply/api/internal/platform/httpx"
	"github.com/millbrook-supply/api/internal/platform/requestctx"
)

// Verifier validates a bearer token and yields the caller's identity.
type Verifier interface {
	Verify(token string) (requestctx.Identity, error)
}

// Middleware verifies the Authorization header and stores the identity on the
// request context. Requests without a token pass through anonymously;
// handlers that need authentication compose RequireAuth after this.
func Middleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			identity, err := verifier.Verify(token)
			if err != nil {
				writeAuthError(w, r, err)
				return
			}
			ctx := requestctx.WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests that carry no authenticated identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requestctx.IdentityFrom(r.Context()); !ok {
			httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRoles rejects authenticated requests whose identity lacks all of the
// given roles.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := requestctx.IdentityFrom(r.Context())
			if !ok {
				httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
				return
			}
			for _, role := range roles {
				if identity.HasRole(normaliseRole(role)) {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.WriteError(r.Context(), w, httpx.NewError("forbidden", "insufficient permissions", http.StatusForbidden))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	code := "token_invalid"
	if errors.Is(err, ErrTokenExpired) {
		code = "token_expired"
	}
	httpx.WriteError(r.Context(), w, httpx.NewError(code, "invalid bearer token", http.StatusUnauthorized))
}
