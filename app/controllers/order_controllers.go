package controllers

import (
	"github.com/buddyengineerz/storefront/app/resources"
	"github.com/buddyengineerz/storefront/app/services"
	"github.com/buddyengineerz/storefront/pkg/ctx"
	"github.com/buddyengineerz/storefront/pkg/resource"
)

// IdempotencyKeyHeader names a checkout attempt. Retrying with the same
// key returns the original order.
const IdempotencyKeyHeader = "Idempotency-Key"

type OrderController struct {
	orders *services.OrderService
}

func NewOrderController(s *services.Services) *OrderController {
	return &OrderController{orders: s.Orders}
}

// Store places an order from the user's cart. A replayed key answers 200
// with the existing order instead of 201.
func (c *OrderController) Store(x *ctx.Context) {
	var in services.PlaceOrderInput
	if !x.BindJSON(&in) {
		return
	}
	o, replayed, err := c.orders.PlaceOrder(x.Context(), x.UserID(), in, x.Header(IdempotencyKeyHeader))
	if err != nil {
		x.Fail(err)
		return
	}
	if replayed {
		x.SetHeader("Idempotent-Replayed", "true")
		x.Success(resources.Order(o))
		return
	}
	x.Created(resources.Order(o))
}

func (c *OrderController) Index(x *ctx.Context) {
	list, p, err := c.orders.ListMyOrders(x.Context(), x.UserID(), x.Page())
	if err != nil {
		x.Fail(err)
		return
	}
	x.Paginated(resource.Many(list, resources.Order), p)
}

func (c *OrderController) Show(x *ctx.Context) {
	id, ok := x.ParamUint("id")
	if !ok {
		return
	}
	o, err := c.orders.GetMyOrder(x.Context(), x.UserID(), id)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(resources.Order(o))
}

func (c *OrderController) Cancel(x *ctx.Context) {
	id, ok := x.ParamUint("id")
	if !ok {
		return
	}
	var in services.CancelInput
	if !x.BindJSON(&in) {
		return
	}
	o, err := c.orders.CancelOrder(x.Context(), x.UserID(), id, in)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Message("Order cancelled", resources.Order(o))
}

// Payment records the gateway result for the user's own order.
// It is unauthenticated by the gateway and stands in for a signed
// callback; see OrderService.UpdatePaymentStatus.
func (c *OrderController) Payment(x *ctx.Context) {
	id, ok := x.ParamUint("id")
	if !ok {
		return
	}
	var in services.PaymentInput
	if !x.BindJSON(&in) {
		return
	}
	o, err := c.orders.UpdatePaymentStatus(x.Context(), id, x.UserID(), in)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(resources.Order(o))
}
