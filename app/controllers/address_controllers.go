package controllers

import (
	"github.com/buddyengineerz/storefront/app/resources"
	"github.com/buddyengineerz/storefront/app/services"
	"github.com/buddyengineerz/storefront/pkg/ctx"
	"github.com/buddyengineerz/storefront/pkg/resource"
)

type AddressController struct {
	addresses *services.AddressService
}

func NewAddressController(s *services.Services) *AddressController {
	return &AddressController{addresses: s.Addresses}
}

func (c *AddressController) Index(x *ctx.Context) {
	list, err := c.addresses.List(x.Context(), x.UserID())
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(resource.Many(list, resources.Address))
}

func (c *AddressController) Show(x *ctx.Context) {
	id, ok := x.ParamUint("id")
	if !ok {
		return
	}
	a, err := c.addresses.Get(x.Context(), x.UserID(), id)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(resources.Address(a))
}

func (c *AddressController) Store(x *ctx.Context) {
	var in services.AddressInput
	if !x.BindJSON(&in) {
		return
	}
	a, err := c.addresses.Create(x.Context(), x.UserID(), in)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Created(resources.Address(a))
}

func (c *AddressController) Update(x *ctx.Context) {
	id, ok := x.ParamUint("id")
	if !ok {
		return
	}
	var in services.AddressInput
	if !x.BindJSON(&in) {
		return
	}
	a, err := c.addresses.Update(x.Context(), x.UserID(), id, in)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(resources.Address(a))
}

func (c *AddressController) Destroy(x *ctx.Context) {
	id, ok := x.ParamUint("id")
	if !ok {
		return
	}
	if err := c.addresses.Delete(x.Context(), x.UserID(), id); err != nil {
		x.Fail(err)
		return
	}
	x.NoContent()
}

func (c *AddressController) MakeDefault(x *ctx.Context) {
	id, ok := x.ParamUint("id")
	if !ok {
		return
	}
	a, err := c.addresses.SetDefault(x.Context(), x.UserID(), id)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(resources.Address(a))
}
