package controllers

import (
	"github.com/buddyengineerz/storefront/app/repositories"
	"github.com/buddyengineerz/storefront/app/resources"
	"github.com/buddyengineerz/storefront/app/services"
	"github.com/buddyengineerz/storefront/pkg/ctx"
	"github.com/buddyengineerz/storefront/pkg/resource"
)

type CatalogController struct {
	catalog *services.CatalogService
}

func NewCatalogController(s *services.Services) *CatalogController {
	return &CatalogController{catalog: s.Catalog}
}

// productFilter reads the listing filters shared by the public and admin
// product lists.
func productFilter(x *ctx.Context) repositories.ProductFilter {
	f := repositories.ProductFilter{
		Category: x.Query("category"),
		Gender:   x.Query("gender"),
		MinPrice: x.QueryFloat("min_price"),
		MaxPrice: x.QueryFloat("max_price"),
		Size:     x.Query("size"),
		Color:    x.Query("color"),
		Featured: x.QueryBool("featured"),
		Search:   x.Query("search"),
		Sort:     x.Query("sort"),
	}
	if in := x.QueryBool("in_stock"); in != nil {
		f.InStock = *in
	}
	return f
}

func (c *CatalogController) Categories(x *ctx.Context) {
	cats, err := c.catalog.ListCategories(x.Context())
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(resource.Many(cats, resources.Category))
}

func (c *CatalogController) Products(x *ctx.Context) {
	page, err := c.catalog.ListProducts(x.Context(), productFilter(x), x.Page())
	if err != nil {
		x.Fail(err)
		return
	}
	x.Paginated(resource.Many(page.Items, resources.Product), page.Pagination)
}

func (c *CatalogController) Featured(x *ctx.Context) {
	ps, err := c.catalog.FeaturedProducts(x.Context(), x.QueryInt("limit", 8))
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(resource.Many(ps, resources.Product))
}

func (c *CatalogController) Show(x *ctx.Context) {
	id, ok := x.ParamUint("id")
	if !ok {
		return
	}
	p, err := c.catalog.GetProduct(x.Context(), id)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(resources.Product(p))
}

func (c *CatalogController) ShowBySlug(x *ctx.Context) {
	p, err := c.catalog.GetProductBySlug(x.Context(), x.Param("slug"))
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(resources.Product(p))
}

func (c *CatalogController) Related(x *ctx.Context) {
	id, ok := x.ParamUint("id")
	if !ok {
		return
	}
	ps, err := c.catalog.RelatedProducts(x.Context(), id, x.QueryInt("limit", 4))
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(resource.Many(ps, resources.Product))
}
