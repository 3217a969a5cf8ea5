package ctx_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/buddyengineerz/storefront/pkg/apperr"
	"github.com/buddyengineerz/storefront/pkg/auth"
	appctx "github.com/buddyengineerz/storefront/pkg/ctx"
)

func TestWrapAndJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	appctx.Wrap(func(c *appctx.Context) {
		c.JSON(http.StatusOK, map[string]any{"ok": true})
	})(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	appctx.Wrap(func(c *appctx.Context) {
		c.Success(map[string]any{"id": 1})
	})(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestSetAndGet(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	appctx.Wrap(func(c *appctx.Context) {
		c.Set("user_id", uint(42))
		uid := c.GetUint("user_id")
		if uid != 42 {
			t.Errorf("expected 42, got %d", uid)
		}
		c.Success(nil)
	})(rec, req)
}

func TestBindJSONValid(t *testing.T) {
	rec := httptest.NewRecorder()
	body := `{"name":"Asha","email":"asha@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	appctx.Wrap(func(c *appctx.Context) {
		var input struct {
			Name  string `json:"name"  validate:"required"`
			Email string `json:"email" validate:"required,email"`
		}
		if !c.BindJSON(&input) {
			t.Error("expected BindJSON to succeed")
			return
		}
		if input.Name != "Asha" {
			t.Errorf("expected Asha, got %s", input.Name)
		}
		c.Success(nil)
	})(rec, req)

	if rec.Code == http.StatusUnprocessableEntity {
		t.Errorf("unexpected validation failure: %s", rec.Body.String())
	}
}

func TestBindJSONInvalid(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":""}`))
	req.Header.Set("Content-Type", "application/json")

	appctx.Wrap(func(c *appctx.Context) {
		var input struct {
			Name string `json:"name" validate:"required"`
		}
		if c.BindJSON(&input) {
			t.Error("expected BindJSON to fail")
		}
	})(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestFailMapsAppErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
		body string
	}{
		{apperr.NotFoundf("Order %d not found", 12), http.StatusNotFound, "Order 12 not found"},
		{apperr.Field("pincode", "The pincode must be exactly 6 digits."), http.StatusUnprocessableEntity, `"pincode"`},
		{apperr.Conflictf("Only 2 left in stock"), http.StatusConflict, "Only 2 left"},
		{errors.New("dial tcp: refused"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		appctx.Wrap(func(c *appctx.Context) { c.Fail(tc.err) })(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != tc.code {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.code, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), tc.body) {
			t.Errorf("%v: body %s missing %q", tc.err, rec.Body.String(), tc.body)
		}
		if strings.Contains(rec.Body.String(), "refused") {
			t.Error("internal cause leaked to client")
		}
	}
}

func TestParamUint(t *testing.T) {
	r := chi.NewRouter()
	var got uint
	r.Get("/orders/{id}", appctx.Wrap(func(c *appctx.Context) {
		id, ok := c.ParamUint("id")
		if !ok {
			return
		}
		got = id
		c.Success(nil)
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/17", nil))
	if got != 17 || rec.Code != http.StatusOK {
		t.Errorf("expected id 17 and 200, got %d and %d", got, rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/abc", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for non-numeric id, got %d", rec.Code)
	}
}

func TestPageAndUser(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=500", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{UserID: 5, Role: auth.RoleCustomer}))

	appctx.Wrap(func(c *appctx.Context) {
		p := c.Page()
		if p.Number != 3 || p.PerPage != 100 {
			t.Errorf("unexpected page %+v", p)
		}
		if c.UserID() != 5 || c.Role() != auth.RoleCustomer {
			t.Errorf("unexpected user %d/%s", c.UserID(), c.Role())
		}
		c.NoContent()
	})(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
