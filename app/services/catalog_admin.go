package services

import (
	"context"
	"fmt"
	"io"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/app/repositories"
	"github.com/buddyengineerz/storefront/pkg/apperr"
	"github.com/buddyengineerz/storefront/pkg/logger"
	"github.com/buddyengineerz/storefront/pkg/orm"
	"github.com/buddyengineerz/storefront/pkg/storage"
	"github.com/buddyengineerz/storefront/pkg/validate"
)

// ProductInput creates a product.
type ProductInput struct {
	Name          string   `json:"name" validate:"required,max=255"`
	Slug          string   `json:"slug" validate:"nullable,slug,max=280"`
	Description   string   `json:"description" validate:"max=5000"`
	Price         float64  `json:"price" validate:"gt=0"`
	OriginalPrice *float64 `json:"original_price" validate:"gt=0"`
	Images        []string `json:"images"`
	Sizes         []string `json:"sizes"`
	Colors        []string `json:"colors"`
	Tags          []string `json:"tags"`
	CategoryID    *uint    `json:"category_id"`
	Stock         int      `json:"stock" validate:"gte=0"`
	Featured      bool     `json:"featured"`
	Gender        string   `json:"gender" validate:"required,in=men,women,unisex"`
	IsActive      *bool    `json:"is_active"`
}

// ProductPatch updates only the fields that are present.
type ProductPatch struct {
	Name          *string   `json:"name" validate:"min=1,max=255"`
	Description   *string   `json:"description" validate:"max=5000"`
	Price         *float64  `json:"price" validate:"gt=0"`
	OriginalPrice *float64  `json:"original_price" validate:"gte=0"`
	Images        *[]string `json:"images"`
	Sizes         *[]string `json:"sizes"`
	Colors        *[]string `json:"colors"`
	Tags          *[]string `json:"tags"`
	CategoryID    *uint     `json:"category_id"`
	Stock         *int      `json:"stock" validate:"gte=0"`
	Featured      *bool     `json:"featured"`
	Gender        *string   `json:"gender" validate:"in=men,women,unisex"`
	IsActive      *bool     `json:"is_active"`
}

// AdminListProducts includes inactive products.
func (s *CatalogService) AdminListProducts(ctx context.Context, f repositories.ProductFilter, page orm.Page) (ProductPage, error) {
	f.IncludeInactive = true
	return s.ListProducts(ctx, f, page)
}

func (s *CatalogService) AdminGetProduct(ctx context.Context, id uint) (models.Product, error) {
	return s.products.Find(ctx, id, true)
}

func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (models.Product, error) {
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		return models.Product{}, apperr.Invalid(errs)
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return models.Product{}, err
	}

	base := in.Slug
	if base == "" {
		base = slug.Make(in.Name)
	}
	sl, err := s.uniqueProductSlug(ctx, base, 0)
	if err != nil {
		return models.Product{}, err
	}

	p := models.Product{
		Name:        in.Name,
		Slug:        sl,
		Description: in.Description,
		Price:       decimal.NewFromFloat(in.Price).Round(2),
		Images:      nonNil(in.Images),
		Sizes:       nonNil(in.Sizes),
		Colors:      nonNil(in.Colors),
		Tags:        nonNil(in.Tags),
		CategoryID:  in.CategoryID,
		Stock:       in.Stock,
		Featured:    in.Featured,
		Gender:      in.Gender,
		IsActive:    in.IsActive == nil || *in.IsActive,
	}
	if in.OriginalPrice != nil {
		op := decimal.NewFromFloat(*in.OriginalPrice).Round(2)
		p.OriginalPrice = &op
	}
	if err := s.products.Create(ctx, &p); err != nil {
		return models.Product{}, err
	}
	s.InvalidateCache(ctx)
	logger.WithCtx(ctx).Info("catalog: product created", "product_id", p.ID, "slug", p.Slug)
	return s.products.Find(ctx, p.ID, true)
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id uint, in ProductPatch) (models.Product, error) {
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		return models.Product{}, apperr.Invalid(errs)
	}
	p, err := s.products.Find(ctx, id, true)
	if err != nil {
		return p, err
	}
	if in.CategoryID != nil {
		if err := s.checkCategory(ctx, in.CategoryID); err != nil {
			return p, err
		}
		p.CategoryID = in.CategoryID
	}
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = decimal.NewFromFloat(*in.Price).Round(2)
	}
	if in.OriginalPrice != nil {
		if *in.OriginalPrice == 0 {
			p.OriginalPrice = nil
		} else {
			op := decimal.NewFromFloat(*in.OriginalPrice).Round(2)
			p.OriginalPrice = &op
		}
	}
	if in.Images != nil {
		p.Images = nonNil(*in.Images)
	}
	if in.Sizes != nil {
		p.Sizes = nonNil(*in.Sizes)
	}
	if in.Colors != nil {
		p.Colors = nonNil(*in.Colors)
	}
	if in.Tags != nil {
		p.Tags = nonNil(*in.Tags)
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.Featured != nil {
		p.Featured = *in.Featured
	}
	if in.Gender != nil {
		p.Gender = *in.Gender
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}

	p.Category = nil
	if err := s.products.Save(ctx, &p); err != nil {
		return p, err
	}
	s.InvalidateCache(ctx)
	return s.products.Find(ctx, id, true)
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id uint) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.InvalidateCache(ctx)
	logger.WithCtx(ctx).Info("catalog: product deleted", "product_id", id)
	return nil
}

// AdjustStock applies a signed delta and returns the new stock.
func (s *CatalogService) AdjustStock(ctx context.Context, id uint, delta int) (int, error) {
	if delta == 0 {
		return 0, apperr.Field("delta", "The delta must not be zero.")
	}
	stock, err := s.products.AdjustStock(ctx, id, delta)
	if err != nil {
		return 0, err
	}
	s.InvalidateCache(ctx)
	return stock, nil
}

// AddImage uploads an image to disk and appends its URL to the product.
func (s *CatalogService) AddImage(ctx context.Context, disk storage.Disk, id uint, contentType string, r io.Reader) (models.Product, error) {
	p, err := s.products.Find(ctx, id, true)
	if err != nil {
		return p, err
	}
	url, err := storage.PutImage(ctx, disk, id, contentType, r)
	if err != nil {
		if err == storage.ErrUnsupportedType {
			return p, apperr.Field("image", "The image must be a jpeg, png or webp file.")
		}
		return p, apperr.Wrap(apperr.Unavailable, "Image storage unavailable", err)
	}
	images := append(nonNil(p.Images), url)
	return s.UpdateProduct(ctx, id, ProductPatch{Images: &images})
}

func (s *CatalogService) checkCategory(ctx context.Context, id *uint) error {
	if id == nil {
		return nil
	}
	if _, err := s.categories.Find(ctx, *id); err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return apperr.Field("category_id", "The selected category does not exist.")
		}
		return err
	}
	return nil
}

// uniqueProductSlug appends -2, -3 ... until the slug is free. Soft-deleted
// products still hold their slug.
func (s *CatalogService) uniqueProductSlug(ctx context.Context, base string, exceptID uint) (string, error) {
	if base == "" {
		base = "product"
	}
	candidate := base
	for i := 2; ; i++ {
		var n int64
		err := s.db.WithContext(ctx).Unscoped().Model(&models.Product{}).
			Where("slug = ? AND id <> ?", candidate, exceptID).Count(&n).Error
		if err != nil {
			return "", apperr.FromDB(err)
		}
		if n == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// ── Categories ──────────────────────────────────────────────────────────────

type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=2000"`
	ImageURL    string `json:"image_url" validate:"nullable,url"`
	SortOrder   int    `json:"sort_order" validate:"gte=0"`
	IsActive    *bool  `json:"is_active"`
}

func (s *CatalogService) AdminListCategories(ctx context.Context) ([]models.Category, error) {
	return s.categories.List(ctx, true)
}

func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (models.Category, error) {
	c := models.Category{IsActive: true}
	if err := s.applyCategory(ctx, &c, in); err != nil {
		return c, err
	}
	if err := s.categories.Create(ctx, &c); err != nil {
		return c, err
	}
	s.InvalidateCache(ctx)
	return c, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id uint, in CategoryInput) (models.Category, error) {
	c, err := s.categories.Find(ctx, id)
	if err != nil {
		return c, err
	}
	if err := s.applyCategory(ctx, &c, in); err != nil {
		return c, err
	}
	if err := s.categories.Save(ctx, &c); err != nil {
		return c, err
	}
	s.InvalidateCache(ctx)
	return c, nil
}

func (s *CatalogService) applyCategory(ctx context.Context, c *models.Category, in CategoryInput) error {
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		return apperr.Invalid(errs)
	}
	sl := slug.Make(in.Name)
	if sl == "" {
		return apperr.Field("name", "The name must contain letters or digits.")
	}
	taken, err := s.categories.SlugTaken(ctx, sl, c.ID)
	if err != nil {
		return err
	}
	if taken {
		return apperr.Conflictf("A category named %q already exists", in.Name)
	}
	c.Name = in.Name
	c.Slug = sl
	c.Description = in.Description
	c.ImageURL = in.ImageURL
	c.SortOrder = in.SortOrder
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	return nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id uint) error {
	if err := s.categories.Delete(ctx, id); err != nil {
		return err
	}
	s.InvalidateCache(ctx)
	return nil
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
