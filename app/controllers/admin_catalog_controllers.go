package controllers

import (
	"net/http"

	"github.com/buddyengineerz/storefront/app/resources"
	"github.com/buddyengineerz/storefront/app/services"
	"github.com/buddyengineerz/storefront/pkg/apperr"
	"github.com/buddyengineerz/storefront/pkg/ctx"
	"github.com/buddyengineerz/storefront/pkg/resource"
	"github.com/buddyengineerz/storefront/pkg/storage"
)

// maxImageBytes caps a single product image upload.
const maxImageBytes = 8 << 20

// AdminCatalogController manages products and categories in the back office.
type AdminCatalogController struct {
	catalog *services.CatalogService
	disk    storage.Disk
}

// NewAdminCatalogController takes the image disk; a nil disk turns image
// uploads into 503s.
func NewAdminCatalogController(s *services.Services, disk storage.Disk) *AdminCatalogController {
	return &AdminCatalogController{catalog: s.Catalog, disk: disk}
}

// ─── Products ────────────────────────────────────────────────────────────────

func (c *AdminCatalogController) Products(x *ctx.Context) {
	page, err := c.catalog.AdminListProducts(x.Context(), productFilter(x), x.Page())
	if err != nil {
		x.Fail(err)
		return
	}
	x.Paginated(resource.Many(page.Items, resources.AdminProduct), page.Pagination)
}

func (c *AdminCatalogController) ShowProduct(x *ctx.Context) {
	id, ok := x.ParamUint("id")
	if !ok {
		return
	}
	p, err := c.catalog.AdminGetProduct(x.Context(), id)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(resources.AdminProduct(p))
}

func (c *AdminCatalogController) StoreProduct(x *ctx.Context) {
	var in services.ProductInput
	if !x.BindJSON(&in) {
		return
	}
	p, err := c.catalog.CreateProduct(x.Context(), in)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Created(resources.AdminProduct(p))
}

func (c *AdminCatalogController) UpdateProduct(x *ctx.Context) {
	id, ok := x.ParamUint("id")
	if !ok {
		return
	}
	var in services.ProductPatch
	if !x.BindJSON(&in) {
		return
	}
	p, err := c.catalog.UpdateProduct(x.Context(), id, in)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(resources.AdminProduct(p))
}

func (c *AdminCatalogController) DestroyProduct(x *ctx.Context) {
	id, ok := x.ParamUint("id")
	if !ok {
		return
	}
	if err := c.catalog.DeleteProduct(x.Context(), id); err != nil {
		x.Fail(err)
		return
	}
	x.NoContent()
}

type stockInput struct {
	Delta int `json:"delta" validate:"required"`
}

// AdjustStock applies {"delta": n} and answers with the new stock.
func (c *AdminCatalogController) AdjustStock(x *ctx.Context) {
	id, ok := x.ParamUint("id")
	if !ok {
		return
	}
	var in stockInput
	if !x.BindJSON(&in) {
		return
	}
	stock, err := c.catalog.AdjustStock(x.Context(), id, in.Delta)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(map[string]any{"id": id, "stock": stock})
}

// UploadImage stores the multipart "image" file and appends its URL to
// the product's images.
func (c *AdminCatalogController) UploadImage(x *ctx.Context) {
	id, ok := x.ParamUint("id")
	if !ok {
		return
	}
	if c.disk == nil {
		x.Fail(apperr.New(apperr.Unavailable, "Image storage is not configured"))
		return
	}

	x.R.Body = http.MaxBytesReader(x.W, x.R.Body, maxImageBytes+1<<20)
	if err := x.R.ParseMultipartForm(maxImageBytes); err != nil {
		x.Fail(apperr.Field("image", "The upload must be a multipart form under 8 MB."))
		return
	}
	file, hdr, err := x.R.FormFile("image")
	if err != nil {
		x.Fail(apperr.Field("image", "The image field is required."))
		return
	}
	defer file.Close()

	p, err := c.catalog.AddImage(x.Context(), c.disk, id, hdr.Header.Get("Content-Type"), file)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Created(resources.AdminProduct(p))
}

// ─── Categories ──────────────────────────────────────────────────────────────

func (c *AdminCatalogController) Categories(x *ctx.Context) {
	cats, err := c.catalog.AdminListCategories(x.Context())
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(resource.Many(cats, resources.AdminCategory))
}

func (c *AdminCatalogController) StoreCategory(x *ctx.Context) {
	var in services.CategoryInput
	if !x.BindJSON(&in) {
		return
	}
	cat, err := c.catalog.CreateCategory(x.Context(), in)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Created(resources.AdminCategory(cat))
}

func (c *AdminCatalogController) UpdateCategory(x *ctx.Context) {
	id, ok := x.ParamUint("id")
	if !ok {
		return
	}
	var in services.CategoryInput
	if !x.BindJSON(&in) {
		return
	}
	cat, err := c.catalog.UpdateCategory(x.Context(), id, in)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(resources.AdminCategory(cat))
}

func (c *AdminCatalogController) DestroyCategory(x *ctx.Context) {
	id, ok := x.ParamUint("id")
	if !ok {
		return
	}
	if err := c.catalog.DeleteCategory(x.Context(), id); err != nil {
		x.Fail(err)
		return
	}
	x.NoContent()
}
