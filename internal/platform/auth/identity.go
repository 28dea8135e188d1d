// Package auth verifies bearer tokens and attaches the caller's identity to
// the request context.
package auth

import (
	"context"
	"strings"

	"github.com/millbrook-supply/api/internal/platform/requestctx"
)

// Role constants used throughout the API when checking authorisation boundaries.
const (
	RoleUser  = "user"
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// IdentityFromContext retrieves the authenticated identity from the request context.
func IdentityFromContext(ctx context.Context) (requestctx.Identity, bool) {
	return requestctx.IdentityFrom(ctx)
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func normaliseRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		role = normaliseRole(role)
		if role == "" {
			continue
		}
		out = append(out, role)
	}
	if len(out) == 0 {
		out = append(out, RoleUser)
	}
	return out
}
