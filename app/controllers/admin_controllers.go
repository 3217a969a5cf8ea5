package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/buddyengineerz/storefront/app/repositories"
	"github.com/buddyengineerz/storefront/app/resources"
	"github.com/buddyengineerz/storefront/app/services"
	"github.com/buddyengineerz/storefront/pkg/apperr"
	"github.com/buddyengineerz/storefront/pkg/ctx"
	"github.com/buddyengineerz/storefront/pkg/resource"
)

// AdminController serves the back office: dashboard, customers, orders,
// exports and admin grants.
type AdminController struct {
	analytics *services.AnalyticsService
	customers *services.CustomerService
	orders    *services.OrderService
	exports   *services.ExportService
	auth      *services.AuthService
	now       func() time.Time
}

func NewAdminController(s *services.Services) *AdminController {
	return &AdminController{
		analytics: s.Analytics,
		customers: s.Customers,
		orders:    s.Orders,
		exports:   s.Exports,
		auth:      s.Auth,
		now:       time.Now,
	}
}

func (c *AdminController) Dashboard(x *ctx.Context) {
	d, err := c.analytics.Dashboard(x.Context(), x.QueryInt("days", 30))
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(d)
}

// ─── Customers ───────────────────────────────────────────────────────────────

func (c *AdminController) Customers(x *ctx.Context) {
	list, p, err := c.customers.List(x.Context(), x.Query("search"), x.Page())
	if err != nil {
		x.Fail(err)
		return
	}
	x.Paginated(list, p)
}

func (c *AdminController) ShowCustomer(x *ctx.Context) {
	id, ok := x.ParamUint("id")
	if !ok {
		return
	}
	d, err := c.customers.Get(x.Context(), id)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(map[string]any{
		"customer":  d.CustomerSummary,
		"addresses": resource.Many(d.Addresses, resources.Address),
		"orders":    resource.Many(d.Orders, resources.Order),
	})
}

// ─── Orders ──────────────────────────────────────────────────────────────────

// orderFilter reads ?status, ?payment_status, ?search, ?user_id and the
// inclusive ?from / ?to dates (YYYY-MM-DD). ok is false after a 422.
func orderFilter(x *ctx.Context) (f repositories.OrderFilter, ok bool) {
	f = repositories.OrderFilter{
		Status:        x.Query("status"),
		PaymentStatus: x.Query("payment_status"),
		Search:        x.Query("search"),
		UserID:        uint(max(x.QueryInt("user_id", 0), 0)),
	}
	errs := map[string]string{}
	if v := x.Query("from"); v != "" {
		if t, err := time.Parse(time.DateOnly, v); err == nil {
			f.From = &t
		} else {
			errs["from"] = "The from date must be YYYY-MM-DD."
		}
	}
	if v := x.Query("to"); v != "" {
		if t, err := time.Parse(time.DateOnly, v); err == nil {
			end := t.AddDate(0, 0, 1)
			f.To = &end
		} else {
			errs["to"] = "The to date must be YYYY-MM-DD."
		}
	}
	if len(errs) > 0 {
		x.ValidationError(errs)
		return f, false
	}
	return f, true
}

func (c *AdminController) Orders(x *ctx.Context) {
	f, ok := orderFilter(x)
	if !ok {
		return
	}
	list, p, err := c.orders.AdminListOrders(x.Context(), f, x.Page())
	if err != nil {
		x.Fail(err)
		return
	}
	x.Paginated(resource.Many(list, resources.Order), p)
}

func (c *AdminController) ShowOrder(x *ctx.Context) {
	id, ok := x.ParamUint("id")
	if !ok {
		return
	}
	o, err := c.orders.AdminGetOrder(x.Context(), id)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(resources.Order(o))
}

func (c *AdminController) UpdateOrderStatus(x *ctx.Context) {
	id, ok := x.ParamUint("id")
	if !ok {
		return
	}
	var in services.StatusInput
	if !x.BindJSON(&in) {
		return
	}
	o, err := c.orders.AdminUpdateStatus(x.Context(), id, in)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(resources.Order(o))
}

func (c *AdminController) UpdateOrderPayment(x *ctx.Context) {
	id, ok := x.ParamUint("id")
	if !ok {
		return
	}
	var in services.PaymentInput
	if !x.BindJSON(&in) {
		return
	}
	o, err := c.orders.UpdatePaymentStatus(x.Context(), id, 0, in)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(resources.Order(o))
}

// ─── Exports ─────────────────────────────────────────────────────────────────

func (c *AdminController) ExportProducts(x *ctx.Context) {
	var buf bytes.Buffer
	if err := c.exports.Products(x.Context(), &buf); err != nil {
		x.Fail(err)
		return
	}
	c.attachment(x, "products", buf.Bytes())
}

func (c *AdminController) ExportOrders(x *ctx.Context) {
	f, ok := orderFilter(x)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := c.exports.Orders(x.Context(), f, &buf); err != nil {
		x.Fail(err)
		return
	}
	c.attachment(x, "orders", buf.Bytes())
}

func (c *AdminController) attachment(x *ctx.Context, name string, body []byte) {
	filename := fmt.Sprintf("%s-%s.xlsx", name, c.now().UTC().Format("20060102"))
	x.SetHeader("Content-Type", services.XLSXContentType)
	x.SetHeader("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	x.W.WriteHeader(http.StatusOK)
	x.W.Write(body) //nolint:errcheck
}

// ─── Admin users ─────────────────────────────────────────────────────────────

func (c *AdminController) Admins(x *ctx.Context) {
	list, err := c.auth.Admins(x.Context())
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(resource.Many(list, resources.AdminUser))
}

func (c *AdminController) GrantAdmin(x *ctx.Context) {
	var in services.GrantInput
	if !x.BindJSON(&in) {
		return
	}
	a, err := c.auth.Grant(x.Context(), in)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Created(resources.AdminUser(a))
}

func (c *AdminController) RevokeAdmin(x *ctx.Context) {
	id, ok := x.ParamUint("userID")
	if !ok {
		return
	}
	if id == x.UserID() {
		x.Fail(apperr.Conflictf("You cannot revoke your own admin access"))
		return
	}
	if err := c.auth.Revoke(x.Context(), id); err != nil {
		x.Fail(err)
		return
	}
	x.NoContent()
}
