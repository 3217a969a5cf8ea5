package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/buddyengineerz/storefront/pkg/auth"
)

type lookupFunc func(ctx context.Context, userID uint) (string, error)

func (f lookupFunc) AdminRole(ctx context.Context, userID uint) (string, error) {
	return f(ctx, userID)
}

func roles(m map[uint]string) AdminLookup {
	return lookupFunc(func(_ context.Context, id uint) (string, error) { return m[id], nil })
}

func serve(h http.Handler, claims *auth.Claims) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	if claims != nil {
		req = req.WithContext(auth.WithClaims(req.Context(), claims))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSatisfies(t *testing.T) {
	assert.True(t, Satisfies(auth.RoleSuperAdmin, auth.RoleAdmin))
	assert.True(t, Satisfies(auth.RoleAdmin, auth.RoleAdmin))
	assert.False(t, Satisfies(auth.RoleAdmin, auth.RoleSuperAdmin))
	assert.False(t, Satisfies(auth.RoleCustomer, auth.RoleAdmin))
	assert.False(t, Satisfies("root", auth.RoleCustomer))
}

func TestRequireAdmin_UsesStoredRole(t *testing.T) {
	var role string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, _ := auth.FromCtx(r.Context())
		role = c.Role
	})
	h := RequireAdmin(roles(map[uint]string{1: auth.RoleSuperAdmin}))(next)

	// Token says customer but the table says super_admin.
	rec := serve(h, &auth.Claims{UserID: 1, Role: auth.RoleCustomer})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, auth.RoleSuperAdmin, role)
}

func TestRequireAdmin_RevokedAdminForbidden(t *testing.T) {
	h := RequireAdmin(roles(map[uint]string{}))(http.NotFoundHandler())

	rec := serve(h, &auth.Claims{UserID: 2, Role: auth.RoleAdmin})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(h, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHasRole(t *testing.T) {
	h := HasRole(auth.RoleSuperAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := serve(h, &auth.Claims{UserID: 1, Role: auth.RoleAdmin})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(h, &auth.Claims{UserID: 1, Role: auth.RoleSuperAdmin})
	assert.Equal(t, http.StatusOK, rec.Code)
}
