// Package ctx provides the request context storefront handlers receive
// instead of (http.ResponseWriter, *http.Request).
//
//	func (c *ProductController) Show(x *ctx.Context) {
//	    id, ok := x.ParamUint("id")
//	    if !ok {
//	        return
//	    }
//	    product, err := c.catalog.Product(x.Context(), id)
//	    if err != nil {
//	        x.Fail(err)
//	        return
//	    }
//	    x.Success(product)
//	}
//
//	r.Get("/products/{id}", "products.show", ctx.Wrap(pc.Show))
package ctx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/buddyengineerz/storefront/pkg/apperr"
	"github.com/buddyengineerz/storefront/pkg/auth"
	"github.com/buddyengineerz/storefront/pkg/bind"
	"github.com/buddyengineerz/storefront/pkg/orm"
	"github.com/buddyengineerz/storefront/pkg/response"
	"github.com/buddyengineerz/storefront/pkg/validate"
)

// HandlerFunc is the context-aware handler signature.
type HandlerFunc func(c *Context)

// Wrap converts a HandlerFunc to a standard http.HandlerFunc.
func Wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := acquire(w, r)
		defer release(c)
		h(c)
	}
}

// Context wraps a request/response pair.
type Context struct {
	W      http.ResponseWriter
	R      *http.Request
	mu     sync.RWMutex
	store  map[string]any
	status int
}

var pool = sync.Pool{
	New: func() any { return &Context{store: make(map[string]any)} },
}

func acquire(w http.ResponseWriter, r *http.Request) *Context {
	c := pool.Get().(*Context)
	c.W = w
	c.R = r
	c.status = 0
	for k := range c.store {
		delete(c.store, k)
	}
	return c
}

func release(c *Context) {
	c.W = nil
	c.R = nil
	pool.Put(c)
}

// ─── Request helpers ──────────────────────────────────────────────────────────

func (c *Context) Param(key string) string {
	return chi.URLParam(c.R, key)
}

// ParamUint parses a positive integer path parameter. On failure it writes
// a 404 and returns false.
func (c *Context) ParamUint(key string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(key), 10, 64)
	if err != nil || n == 0 {
		c.Error(http.StatusNotFound, "Not found")
		return 0, false
	}
	return uint(n), true
}

func (c *Context) Query(key string) string {
	return c.R.URL.Query().Get(key)
}

func (c *Context) DefaultQuery(key, def string) string {
	if v := c.Query(key); v != "" {
		return v
	}
	return def
}

// QueryInt returns the integer query value or def when absent or malformed.
func (c *Context) QueryInt(key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return n
}

// QueryFloat returns a pointer to the parsed value, nil when absent or malformed.
func (c *Context) QueryFloat(key string) *float64 {
	f, err := strconv.ParseFloat(c.Query(key), 64)
	if err != nil {
		return nil
	}
	return &f
}

// QueryBool returns a pointer to the parsed value, nil when absent or malformed.
func (c *Context) QueryBool(key string) *bool {
	b, err := strconv.ParseBool(c.Query(key))
	if err != nil {
		return nil
	}
	return &b
}

// Page reads ?page= and ?per_page= (or ?limit=).
func (c *Context) Page() orm.Page {
	per := c.QueryInt("per_page", 0)
	if per == 0 {
		per = c.QueryInt("limit", 0)
	}
	return orm.Page{Number: c.QueryInt("page", 1), PerPage: per}.Normalize()
}

func (c *Context) Header(key string) string {
	return c.R.Header.Get(key)
}

func (c *Context) Context() context.Context { return c.R.Context() }

// UserID returns the authenticated user's id, or 0 for guests.
func (c *Context) UserID() uint {
	if claims, ok := auth.FromCtx(c.R.Context()); ok {
		return claims.UserID
	}
	return 0
}

// Role returns the authenticated role, or "" for guests.
func (c *Context) Role() string {
	if claims, ok := auth.FromCtx(c.R.Context()); ok {
		return claims.Role
	}
	return ""
}

// ─── Per-request store ────────────────────────────────────────────────────────

func (c *Context) Set(key string, val any) {
	c.mu.Lock()
	c.store[key] = val
	c.mu.Unlock()
}

func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	v, ok := c.store[key]
	c.mu.RUnlock()
	return v, ok
}

func (c *Context) GetString(key string) string {
	v, _ := c.Get(key)
	s, _ := v.(string)
	return s
}

func (c *Context) GetUint(key string) uint {
	v, _ := c.Get(key)
	u, _ := v.(uint)
	return u
}

// ─── Binding / Validation ─────────────────────────────────────────────────────

// BindJSON decodes and validates the body into dest. It writes a 400 for
// malformed JSON or a 422 with field errors, and returns false; the handler
// should return immediately.
func (c *Context) BindJSON(dest any) bool {
	errs, err := bind.JSON(c.R, dest)
	if err != nil {
		c.Error(http.StatusBadRequest, err.Error())
		return false
	}
	if validate.HasErrors(errs) {
		c.ValidationError(errs)
		return false
	}
	return true
}

// ─── Response helpers ─────────────────────────────────────────────────────────

func (c *Context) SetHeader(key, value string) {
	c.W.Header().Set(key, value)
}

func (c *Context) JSON(code int, v any) {
	c.W.Header().Set("Content-Type", "application/json")
	c.W.WriteHeader(code)
	c.status = code
	json.NewEncoder(c.W).Encode(v) //nolint:errcheck
}

func (c *Context) Success(data any) {
	c.JSON(http.StatusOK, response.Envelope{Status: http.StatusOK, Data: data})
}

func (c *Context) Message(message string, data any) {
	c.JSON(http.StatusOK, response.Envelope{Status: http.StatusOK, Message: message, Data: data})
}

func (c *Context) Created(data any) {
	c.JSON(http.StatusCreated, response.Envelope{Status: http.StatusCreated, Data: data})
}

// Paginated sends {"items": [...], "pagination": {...}}.
func (c *Context) Paginated(items any, p orm.Pagination) {
	c.Success(map[string]any{"items": items, "pagination": p})
}

func (c *Context) NoContent() {
	c.status = http.StatusNoContent
	c.W.WriteHeader(http.StatusNoContent)
}

func (c *Context) Error(code int, message string) {
	c.JSON(code, response.Envelope{Status: code, Message: message})
}

// ValidationError sends a 422 with field-level errors.
func (c *Context) ValidationError(errs map[string]string) {
	c.JSON(http.StatusUnprocessableEntity, response.Envelope{
		Status:  http.StatusUnprocessableEntity,
		Message: "Validation failed",
		Errors:  errs,
	})
}

// Fail maps err through the apperr taxonomy. Internal errors are logged
// with the request logger and never leak their cause.
func (c *Context) Fail(err error) {
	c.status = apperr.Status(err)
	response.Fail(c.W, c.R, err)
}

// WrittenStatus returns the status written so far, or 0.
func (c *Context) WrittenStatus() int { return c.status }
