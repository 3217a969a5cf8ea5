package controllers

import (
	"net/url"

	"github.com/google/uuid"

	"github.com/buddyengineerz/storefront/app/cart"
	"github.com/buddyengineerz/storefront/app/services"
	"github.com/buddyengineerz/storefront/pkg/ctx"
)

// CartTokenHeader carries a guest's cart token both ways.
const CartTokenHeader = "X-Cart-Token"

// guestToken returns the request's cart token when it is a valid uuid.
func guestToken(x *ctx.Context) (string, bool) {
	token := x.Header(CartTokenHeader)
	if _, err := uuid.Parse(token); err != nil {
		return "", false
	}
	return token, true
}

// cartOwner resolves whose cart the request addresses. Guests without a
// token are issued one in the response header.
func cartOwner(x *ctx.Context) cart.Owner {
	if uid := x.UserID(); uid != 0 {
		return cart.UserOwner(uid)
	}
	token, ok := guestToken(x)
	if !ok {
		token = uuid.NewString()
	}
	x.SetHeader(CartTokenHeader, token)
	return cart.GuestOwner(token)
}

type CartController struct {
	carts *services.CartService
}

func NewCartController(s *services.Services) *CartController {
	return &CartController{carts: s.Carts}
}

func (c *CartController) Show(x *ctx.Context) {
	view, err := c.carts.View(x.Context(), cartOwner(x))
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(view)
}

func (c *CartController) Add(x *ctx.Context) {
	var in services.AddItemInput
	if !x.BindJSON(&in) {
		return
	}
	view, err := c.carts.AddItem(x.Context(), cartOwner(x), in)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(view)
}

func (c *CartController) Update(x *ctx.Context) {
	var in services.UpdateItemInput
	if !x.BindJSON(&in) {
		return
	}
	view, err := c.carts.UpdateItem(x.Context(), cartOwner(x), itemKey(x), in)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(view)
}

func (c *CartController) Remove(x *ctx.Context) {
	view, err := c.carts.RemoveItem(x.Context(), cartOwner(x), itemKey(x))
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(view)
}

func (c *CartController) Clear(x *ctx.Context) {
	if err := c.carts.Clear(x.Context(), cartOwner(x)); err != nil {
		x.Fail(err)
		return
	}
	x.NoContent()
}

func (c *CartController) Quote(x *ctx.Context) {
	totals, err := c.carts.Quote(x.Context(), cartOwner(x))
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(totals)
}

// Merge moves the guest cart named by X-Cart-Token into the signed-in
// user's cart.
func (c *CartController) Merge(x *ctx.Context) {
	to := cart.UserOwner(x.UserID())
	token, ok := guestToken(x)
	if !ok {
		view, err := c.carts.View(x.Context(), to)
		if err != nil {
			x.Fail(err)
			return
		}
		x.Success(view)
		return
	}
	view, err := c.carts.Merge(x.Context(), cart.GuestOwner(token), to)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(view)
}

// itemKey is the {key} path segment; sizes and colors may arrive escaped.
func itemKey(x *ctx.Context) string {
	raw := x.Param("key")
	if k, err := url.PathUnescape(raw); err == nil {
		return k
	}
	return raw
}
