package repositories

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/pkg/apperr"
	"github.com/buddyengineerz/storefront/pkg/orm"
)

// Product sort orders accepted by List.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortName      = "name"
	SortPopular   = "popular"
)

// ProductFilter narrows a catalogue listing. Zero values mean "any".
type ProductFilter struct {
	Category        string   `json:"category"`
	Gender          string   `json:"gender"`
	MinPrice        *float64 `json:"min_price"`
	MaxPrice        *float64 `json:"max_price"`
	Size            string   `json:"size"`
	Color           string   `json:"color"`
	Featured        *bool    `json:"featured"`
	InStock         bool     `json:"in_stock"`
	Search          string   `json:"search"`
	Sort            string   `json:"sort"`
	IncludeInactive bool     `json:"-"`
}

// ProductRepository reads and writes products.
type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns one page of products matching f.
func (r *ProductRepository) List(ctx context.Context, f ProductFilter, page orm.Page) ([]models.Product, orm.Pagination, error) {
	q := r.filtered(r.db.WithContext(ctx).Model(&models.Product{}), f)
	q = q.Order(orderClause(f.Sort))

	var items []models.Product
	p, err := orm.Paginate(q, page, &items)
	if err != nil {
		return nil, orm.Pagination{}, apperr.FromDB(err)
	}
	if err := r.attachCategories(ctx, items); err != nil {
		return nil, orm.Pagination{}, err
	}
	return items, p, nil
}

func (r *ProductRepository) filtered(q *gorm.DB, f ProductFilter) *gorm.DB {
	if !f.IncludeInactive {
		q = q.Where("products.is_active = ?", true)
	}
	if f.Category != "" {
		q = q.Where("products.category_id IN (?)",
			r.db.Model(&models.Category{}).Select("id").Where("slug = ?", f.Category))
	}
	if f.Gender != "" {
		// unisex items show up under both men and women
		q = q.Where("products.gender IN ?", []string{f.Gender, models.GenderUnisex})
	}
	if f.MinPrice != nil {
		q = q.Where("products.price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("products.price <= ?", *f.MaxPrice)
	}
	if f.Size != "" {
		q = q.Where("products.sizes LIKE ?", `%"`+escapeLike(f.Size)+`"%`)
	}
	if f.Color != "" {
		q = q.Where("products.colors LIKE ?", `%"`+escapeLike(f.Color)+`"%`)
	}
	if f.Featured != nil {
		q = q.Where("products.featured = ?", *f.Featured)
	}
	if f.InStock {
		q = q.Where("products.stock > 0")
	}
	if s := strings.TrimSpace(strings.ToLower(f.Search)); s != "" {
		like := "%" + escapeLike(s) + "%"
		q = q.Where("LOWER(products.name) LIKE ? OR LOWER(products.description) LIKE ? OR LOWER(products.tags) LIKE ?", like, like, like)
	}
	return q
}

func orderClause(sort string) string {
	switch sort {
	case SortPriceAsc:
		return "products.price ASC, products.id ASC"
	case SortPriceDesc:
		return "products.price DESC, products.id DESC"
	case SortName:
		return "products.name ASC, products.id ASC"
	case SortPopular:
		return "(SELECT COALESCE(SUM(order_items.quantity), 0) FROM order_items WHERE order_items.product_id = products.id) DESC, products.id DESC"
	default:
		return "products.created_at DESC, products.id DESC"
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(s)
}

// attachCategories loads the categories for items in one query.
func (r *ProductRepository) attachCategories(ctx context.Context, items []models.Product) error {
	ids := make([]uint, 0, len(items))
	for _, p := range items {
		if p.CategoryID != nil {
			ids = append(ids, *p.CategoryID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	var cats []models.Category
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&cats).Error; err != nil {
		return apperr.FromDB(err)
	}
	byID := make(map[uint]*models.Category, len(cats))
	for i := range cats {
		byID[cats[i].ID] = &cats[i]
	}
	for i := range items {
		if items[i].CategoryID != nil {
			items[i].Category = byID[*items[i].CategoryID]
		}
	}
	return nil
}

// Find loads one product. Inactive products are NotFound unless
// includeInactive is set.
func (r *ProductRepository) Find(ctx context.Context, id uint, includeInactive bool) (models.Product, error) {
	var p models.Product
	q := r.db.WithContext(ctx).Preload("Category")
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	if err := q.First(&p, id).Error; err != nil {
		return p, notFound(err, "Product not found")
	}
	return p, nil
}

func (r *ProductRepository) FindBySlug(ctx context.Context, slug string) (models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).Preload("Category").
		Where("slug = ? AND is_active = ?", slug, true).First(&p).Error
	if err != nil {
		return p, notFound(err, "Product not found")
	}
	return p, nil
}

// FindMany returns active and inactive products keyed by id.
func (r *ProductRepository) FindMany(ctx context.Context, ids []uint) (map[uint]models.Product, error) {
	out := make(map[uint]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var ps []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&ps).Error; err != nil {
		return nil, apperr.FromDB(err)
	}
	for _, p := range ps {
		out[p.ID] = p
	}
	return out, nil
}

func (r *ProductRepository) Featured(ctx context.Context, limit int) ([]models.Product, error) {
	var ps []models.Product
	err := r.db.WithContext(ctx).Preload("Category").
		Where("is_active = ? AND featured = ?", true, true).
		Order("created_at DESC, id DESC").Limit(limit).Find(&ps).Error
	return ps, apperr.FromDB(err)
}

// Related returns other active products in the same category.
func (r *ProductRepository) Related(ctx context.Context, p models.Product, limit int) ([]models.Product, error) {
	ps := []models.Product{}
	if p.CategoryID == nil {
		return ps, nil
	}
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND category_id = ? AND id <> ?", true, *p.CategoryID, p.ID).
		Order("featured DESC, created_at DESC").Limit(limit).Find(&ps).Error
	return ps, apperr.FromDB(err)
}

// LowStock lists active products with fewer than threshold units.
func (r *ProductRepository) LowStock(ctx context.Context, threshold, limit int) ([]models.Product, error) {
	var ps []models.Product
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND stock < ?", true, threshold).
		Order("stock ASC, id ASC").Limit(limit).Find(&ps).Error
	return ps, apperr.FromDB(err)
}

// All streams every product, including inactive ones, for exports.
func (r *ProductRepository) All(ctx context.Context) ([]models.Product, error) {
	var ps []models.Product
	err := r.db.WithContext(ctx).Preload("Category").Order("id ASC").Find(&ps).Error
	return ps, apperr.FromDB(err)
}

func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	return apperr.FromDB(r.db.WithContext(ctx).Create(p).Error)
}

// Save writes every column, including zero values.
func (r *ProductRepository) Save(ctx context.Context, p *models.Product) error {
	return apperr.FromDB(r.db.WithContext(ctx).Omit("Category").Save(p).Error)
}

// Delete soft-deletes.
func (r *ProductRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		return apperr.FromDB(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFoundf("Product not found")
	}
	return nil
}

// AdjustStock adds delta to stock and refuses to go below zero.
func (r *ProductRepository) AdjustStock(ctx context.Context, id uint, delta int) (int, error) {
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND stock + ? >= 0", id, delta).
		UpdateColumn("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return 0, apperr.FromDB(res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.Find(ctx, id, true); err != nil {
			return 0, err
		}
		return 0, apperr.Conflictf("Stock cannot go below zero")
	}
	var stock int
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Pluck("stock", &stock).Error
	return stock, apperr.FromDB(err)
}
