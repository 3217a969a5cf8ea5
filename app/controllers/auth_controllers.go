// Package controllers adapts HTTP requests to the storefront services.
// Handlers decode and validate input, call one service and shape the
// result through app/resources.
package controllers

import (
	"github.com/buddyengineerz/storefront/app/cart"
	"github.com/buddyengineerz/storefront/app/services"
	"github.com/buddyengineerz/storefront/pkg/ctx"
	"github.com/buddyengineerz/storefront/pkg/logger"
)

type AuthController struct {
	auth  *services.AuthService
	carts *services.CartService
}

func NewAuthController(s *services.Services) *AuthController {
	return &AuthController{auth: s.Auth, carts: s.Carts}
}

func (c *AuthController) SignUp(x *ctx.Context) {
	var in services.SignUpInput
	if !x.BindJSON(&in) {
		return
	}
	session, err := c.auth.SignUp(x.Context(), in)
	if err != nil {
		x.Fail(err)
		return
	}
	c.adoptGuestCart(x, session.User.ID)
	x.Created(session)
}

// SignIn issues a token. A guest cart named by X-Cart-Token is merged into
// the user's cart.
func (c *AuthController) SignIn(x *ctx.Context) {
	var in services.SignInInput
	if !x.BindJSON(&in) {
		return
	}
	session, err := c.auth.SignIn(x.Context(), in)
	if err != nil {
		x.Fail(err)
		return
	}
	c.adoptGuestCart(x, session.User.ID)
	x.Success(session)
}

func (c *AuthController) adoptGuestCart(x *ctx.Context, userID uint) {
	token, ok := guestToken(x)
	if !ok {
		return
	}
	if _, err := c.carts.Merge(x.Context(), cart.GuestOwner(token), cart.UserOwner(userID)); err != nil {
		// signing in still succeeds; the guest lines stay under the token
		logger.WithCtx(x.Context()).Warn("auth: guest cart merge failed", "user_id", userID, "error", err)
	}
}

func (c *AuthController) Me(x *ctx.Context) {
	account, err := c.auth.Me(x.Context(), x.UserID())
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(account)
}

func (c *AuthController) UpdateMe(x *ctx.Context) {
	var in services.ProfileInput
	if !x.BindJSON(&in) {
		return
	}
	account, err := c.auth.UpdateProfile(x.Context(), x.UserID(), in)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Message("Profile updated", account)
}
