package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/pkg/apperr"
)

type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// List returns categories by sort order with their active product counts.
func (r *CategoryRepository) List(ctx context.Context, includeInactive bool) ([]models.Category, error) {
	counts := r.db.Model(&models.Product{}).
		Select("category_id, COUNT(*) AS n").
		Where("is_active = ?", true).
		Group("category_id")

	q := r.db.WithContext(ctx).Model(&models.Category{}).
		Select("categories.*, COALESCE(pc.n, 0) AS product_count").
		Joins("LEFT JOIN (?) AS pc ON pc.category_id = categories.id", counts).
		Order("categories.sort_order ASC, categories.name ASC")
	if !includeInactive {
		q = q.Where("categories.is_active = ?", true)
	}

	cats := []models.Category{}
	return cats, apperr.FromDB(q.Find(&cats).Error)
}

func (r *CategoryRepository) Find(ctx context.Context, id uint) (models.Category, error) {
	var c models.Category
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return c, notFound(err, "Category not found")
	}
	return c, nil
}

func (r *CategoryRepository) SlugTaken(ctx context.Context, slug string, exceptID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Category{}).
		Where("slug = ? AND id <> ?", slug, exceptID).Count(&n).Error
	return n > 0, apperr.FromDB(err)
}

func (r *CategoryRepository) Create(ctx context.Context, c *models.Category) error {
	return apperr.FromDB(r.db.WithContext(ctx).Create(c).Error)
}

func (r *CategoryRepository) Save(ctx context.Context, c *models.Category) error {
	return apperr.FromDB(r.db.WithContext(ctx).Select("*").Omit("created_at").Updates(c).Error)
}

// Delete refuses while any product, including soft-deleted ones, still
// points at the category.
func (r *CategoryRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Unscoped().Model(&models.Product{}).Where("category_id = ?", id).Count(&n).Error; err != nil {
			return apperr.FromDB(err)
		}
		if n > 0 {
			return apperr.Conflictf("Category still has %d products", n)
		}
		res := tx.Delete(&models.Category{}, id)
		if res.Error != nil {
			return apperr.FromDB(res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFoundf("Category not found")
		}
		return nil
	})
}
