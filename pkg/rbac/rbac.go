// Package rbac gates the admin back office. Admin privilege lives in the
// admin_users table; the token role is only a hint and is re-checked on
// every admin request so a revoked admin loses access immediately.
package rbac

import (
	"context"
	"net/http"

	"github.com/buddyengineerz/storefront/pkg/apperr"
	"github.com/buddyengineerz/storefront/pkg/auth"
	"github.com/buddyengineerz/storefront/pkg/response"
)

// rank orders roles; a higher rank satisfies any lower requirement.
var rank = map[string]int{
	auth.RoleCustomer:   0,
	auth.RoleAdmin:      1,
	auth.RoleSuperAdmin: 2,
}

// Satisfies reports whether role meets required. super_admin satisfies admin.
func Satisfies(role, required string) bool {
	r, ok := rank[role]
	if !ok {
		return false
	}
	return r >= rank[required]
}

// AdminLookup resolves a user's admin role from storage. It returns "" for
// users without an admin_users row.
type AdminLookup interface {
	AdminRole(ctx context.Context, userID uint) (string, error)
}

// RequireAdmin requires an authenticated user with an admin_users row. The
// stored role replaces the token role in the request context.
// Must run after middleware.Authenticate.
func RequireAdmin(lookup AdminLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.FromCtx(r.Context())
			if !ok {
				response.Unauthorized(w, "Authentication required")
				return
			}

			role, err := lookup.AdminRole(r.Context(), claims.UserID)
			if err != nil {
				response.Fail(w, r, apperr.FromDB(err))
				return
			}
			if !Satisfies(role, auth.RoleAdmin) {
				response.Forbidden(w)
				return
			}

			scoped := *claims
			scoped.Role = role
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), &scoped)))
		})
	}
}

// HasRole allows the request when the context role satisfies any of roles.
func HasRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.FromCtx(r.Context())
			if !ok {
				response.Unauthorized(w, "Authentication required")
				return
			}
			for _, required := range roles {
				if Satisfies(claims.Role, required) {
					next.ServeHTTP(w, r)
					return
				}
			}
			response.Forbidden(w)
		})
	}
}
