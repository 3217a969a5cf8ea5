package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/app/repositories"
	"github.com/buddyengineerz/storefront/pkg/cache"
	"github.com/buddyengineerz/storefront/pkg/logger"
	"github.com/buddyengineerz/storefront/pkg/orm"
)

const (
	catalogCachePrefix = "catalog:"
	catalogCacheTTL    = 5 * time.Minute
	maxFeatured        = 24
)

// CatalogService serves the storefront catalogue and the admin writes
// that change it. Category and featured lists are cached; every write
// drops the whole catalog: prefix.
type CatalogService struct {
	db         *gorm.DB
	products   *repositories.ProductRepository
	categories *repositories.CategoryRepository
	cache      cache.Store
}

func NewCatalogService(db *gorm.DB, store cache.Store) *CatalogService {
	return &CatalogService{
		db:         db,
		products:   repositories.NewProductRepository(db),
		categories: repositories.NewCategoryRepository(db),
		cache:      store,
	}
}

// ProductPage is a page of products.
type ProductPage struct {
	Items      []models.Product `json:"items"`
	Pagination orm.Pagination   `json:"pagination"`
}

func (s *CatalogService) ListProducts(ctx context.Context, f repositories.ProductFilter, page orm.Page) (ProductPage, error) {
	logger.WithCtx(ctx).Debug("catalog: list products", "filter", f, "page", page.Number, "per_page", page.PerPage)
	items, p, err := s.products.List(ctx, f, page)
	if err != nil {
		return ProductPage{}, err
	}
	return ProductPage{Items: items, Pagination: p}, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id uint) (models.Product, error) {
	logger.WithCtx(ctx).Debug("catalog: get product", "product_id", id)
	return s.products.Find(ctx, id, false)
}

func (s *CatalogService) GetProductBySlug(ctx context.Context, slug string) (models.Product, error) {
	logger.WithCtx(ctx).Debug("catalog: get product by slug", "slug", slug)
	return s.products.FindBySlug(ctx, slug)
}

func (s *CatalogService) FeaturedProducts(ctx context.Context, limit int) ([]models.Product, error) {
	if limit <= 0 || limit > maxFeatured {
		limit = 8
	}
	var out []models.Product
	err := orm.Remember(ctx, s.cache, fmt.Sprintf("%sfeatured:%d", catalogCachePrefix, limit), catalogCacheTTL, &out, func() error {
		ps, err := s.products.Featured(ctx, limit)
		out = ps
		return err
	})
	return out, err
}

func (s *CatalogService) RelatedProducts(ctx context.Context, id uint, limit int) ([]models.Product, error) {
	if limit <= 0 || limit > maxFeatured {
		limit = 4
	}
	p, err := s.products.Find(ctx, id, false)
	if err != nil {
		return nil, err
	}
	return s.products.Related(ctx, p, limit)
}

// ListCategories returns active categories with product counts.
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	err := orm.Remember(ctx, s.cache, catalogCachePrefix+"categories", catalogCacheTTL, &out, func() error {
		cats, err := s.categories.List(ctx, false)
		out = cats
		return err
	})
	return out, err
}

// InvalidateCache drops every cached catalogue read.
func (s *CatalogService) InvalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DelPrefix(ctx, catalogCachePrefix); err != nil {
		logger.WithCtx(ctx).Warn("catalog: cache invalidation failed", "error", err)
	}
}
