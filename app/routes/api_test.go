package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/app/cart"
	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/app/services"
	"github.com/buddyengineerz/storefront/internal/testdb"
	"github.com/buddyengineerz/storefront/pkg/auth"
	"github.com/buddyengineerz/storefront/pkg/cache"
	"github.com/buddyengineerz/storefront/pkg/router"
)

const testAPIKey = "anon-key"

type client struct {
	t         *testing.T
	h         http.Handler
	token     string
	cartToken string
}

type reply struct {
	Code   int
	Header http.Header
	Body   map[string]any
}

func (r reply) data() map[string]any {
	d, _ := r.Body["data"].(map[string]any)
	return d
}

func (c *client) do(method, path string, body any, headers ...string) reply {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", testAPIKey)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.cartToken != "" {
		req.Header.Set("X-Cart-Token", c.cartToken)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	out := reply{Code: rec.Code, Header: rec.Header()}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out.Body)
	}
	return out
}

func setup(t *testing.T) (*gorm.DB, *router.Router, models.Product) {
	t.Helper()
	db := testdb.Open(t)
	svc := services.New(db, cache.NewMemory(), cart.NewMemoryStore(), services.DefaultPricingRules())

	r := router.New()
	Register(r, Deps{Services: svc, APIKey: testAPIKey, OrderFeed: http.NotFoundHandler()})

	p := models.Product{
		Name: "Segfault Tee", Slug: "segfault-tee", Price: decimal.NewFromInt(500),
		Images: []string{}, Sizes: []string{}, Colors: []string{}, Tags: []string{},
		Stock: 10, Gender: models.GenderUnisex, IsActive: true,
	}
	require.NoError(t, db.Create(&p).Error)
	return db, r, p
}

func TestAPIKeyGuardsAPI(t *testing.T) {
	_, r, _ := setup(t)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c := &client{t: t, h: r.Handler()}
	res := c.do(http.MethodGet, "/api/products?sort=price_asc", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.data()["items"], 1)
}

func TestCheckoutFlow(t *testing.T) {
	db, r, p := setup(t)
	c := &client{t: t, h: r.Handler()}

	// a guest fills a cart and is handed a token
	res := c.do(http.MethodPost, "/api/cart/items", map[string]any{"product_id": p.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	c.cartToken = res.Header.Get("X-Cart-Token")
	require.NotEmpty(t, c.cartToken)

	// signing up adopts the guest cart
	res = c.do(http.MethodPost, "/api/auth/signup", map[string]any{
		"full_name": "Asha Rao", "email": "asha@example.com", "password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	c.token = res.data()["token"].(string)
	c.cartToken = ""

	res = c.do(http.MethodGet, "/api/cart/quote", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 1180.0, res.data()["total"])

	res = c.do(http.MethodPost, "/api/addresses", map[string]any{
		"type": "home", "name": "Asha Rao", "phone": "9876543210", "line1": "12 MG Road",
		"city": "Bengaluru", "state": "Karnataka", "pincode": "560001",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	addressID := res.data()["id"]
	assert.Equal(t, true, res.data()["is_default"])

	place := map[string]any{"address_id": addressID, "payment_method": "cod"}
	res = c.do(http.MethodPost, "/api/orders", place, "Idempotency-Key", "checkout-1")
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	number := res.data()["order_number"]
	orderID := res.data()["id"]
	assert.Equal(t, 1180.0, res.data()["total_amount"])

	res = c.do(http.MethodPost, "/api/orders", place, "Idempotency-Key", "checkout-1")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, number, res.data()["order_number"])
	assert.Equal(t, "true", res.Header.Get("Idempotent-Replayed"))

	var stock int
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", p.ID).Pluck("stock", &stock).Error)
	assert.Equal(t, 8, stock)

	res = c.do(http.MethodGet, fmt.Sprintf("/api/orders/%v", orderID), nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 2.0, res.data()["item_count"])

	res = c.do(http.MethodPost, fmt.Sprintf("/api/orders/%v/cancel", orderID), map[string]any{"reason": "changed my mind"})
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, "cancelled", res.data()["status"])
}

func TestValidationErrorsAreFieldLevel(t *testing.T) {
	_, r, _ := setup(t)
	c := &client{t: t, h: r.Handler()}
	token, _, err := auth.GenerateToken(1, "x@example.com", auth.RoleCustomer)
	require.NoError(t, err)
	c.token = token

	res := c.do(http.MethodPost, "/api/addresses", map[string]any{
		"type": "home", "name": "A", "phone": "9876543210", "line1": "x",
		"city": "y", "state": "z", "pincode": "1234",
	})
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
	errs := res.Body["errors"].(map[string]any)
	assert.Contains(t, errs, "pincode")
}

func TestAdminRoutesConsultAdminUsers(t *testing.T) {
	db, r, _ := setup(t)
	c := &client{t: t, h: r.Handler()}

	res := c.do(http.MethodPost, "/api/auth/signup", map[string]any{
		"full_name": "Ops", "email": "ops@example.com", "password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	c.token = res.data()["token"].(string)
	userID := uint(res.data()["user"].(map[string]any)["id"].(float64))

	assert.Equal(t, http.StatusForbidden, c.do(http.MethodGet, "/admin/dashboard", nil).Code)

	// the token still says customer; the grant takes effect immediately
	require.NoError(t, db.Create(&models.AdminUser{UserID: userID, Role: auth.RoleAdmin}).Error)
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/admin/dashboard?days=7", nil).Code)
	assert.Equal(t, http.StatusForbidden, c.do(http.MethodGet, "/admin/admins", nil).Code, "admins are managed by super admins")

	require.NoError(t, db.Model(&models.AdminUser{}).Where("user_id = ?", userID).Update("role", auth.RoleSuperAdmin).Error)
	res = c.do(http.MethodGet, "/admin/admins", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.Body["data"], 1)

	res = c.do(http.MethodPost, "/admin/categories", map[string]any{"name": "Mugs & Bottles"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	assert.Equal(t, "mugs-and-bottles", res.data()["slug"])

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/exports/products.xlsx", nil)
	req.Header.Set("Authorization", "Bearer "+c.token)
	r.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.XLSXContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "products-")
}

func TestRouteTableIsNamed(t *testing.T) {
	_, r, _ := setup(t)
	for _, name := range []string{
		"products.featured", "cart.items.update", "addresses.default",
		"orders.payment", "admin.products.images", "admin.ws.orders", "admin.admins.destroy",
	} {
		_, ok := r.Path(name)
		assert.True(t, ok, name)
	}
	path, _ := r.Path("cart.items.update")
	assert.Equal(t, "/api/cart/items/{key}", path)
}
