// Package middleware holds the storefront's HTTP middleware.
package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/buddyengineerz/storefront/pkg/auth"
	"github.com/buddyengineerz/storefront/pkg/response"
)

// Authenticate requires a valid bearer token and stores its claims in the
// request context.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		if token == "" {
			response.Unauthorized(w, "Authentication required")
			return
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				response.Unauthorized(w, "Session expired; sign in again")
				return
			}
			response.Unauthorized(w, "Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

// OptionalAuth attaches claims when a valid token is present and otherwise
// lets the request through as a guest. Used by the cart, which serves both.
func OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearer(r); token != "" {
			if claims, err := auth.ValidateToken(token); err == nil {
				r = r.WithContext(auth.WithClaims(r.Context(), claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// APIKey rejects requests that do not carry key in the apikey or X-API-Key
// header. An empty key disables the check.
func APIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("apikey")
			if got == "" {
				got = r.Header.Get("X-API-Key")
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				response.Unauthorized(w, "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromCtx returns the authenticated user id.
func UserIDFromCtx(r *http.Request) (uint, bool) {
	c, ok := auth.FromCtx(r.Context())
	if !ok {
		return 0, false
	}
	return c.UserID, true
}

// RoleFromCtx returns the role claimed by the token.
func RoleFromCtx(r *http.Request) (string, bool) {
	c, ok := auth.FromCtx(r.Context())
	if !ok {
		return "", false
	}
	return c.Role, true
}

// bearer reads the Authorization header. Browsers cannot set headers on a
// WebSocket handshake, so upgrades may pass ?access_token= instead.
func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}
