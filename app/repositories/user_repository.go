package repositories

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/pkg/apperr"
)

// UserRepository handles users, their profiles and admin grants.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail matches case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Preload("Profile").
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if err != nil {
		return u, notFound(err, "User not found")
	}
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Preload("Profile").First(&u, id).Error; err != nil {
		return u, notFound(err, "User not found")
	}
	return u, nil
}

// CreateWithProfile inserts the user and its profile together.
func (r *UserRepository) CreateWithProfile(ctx context.Context, u *models.User, p *models.UserProfile) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Profile").Create(u).Error; err != nil {
			return err
		}
		p.UserID = u.ID
		return tx.Create(p).Error
	})
	if err != nil {
		return apperr.FromDB(err)
	}
	u.Profile = p
	return nil
}

func (r *UserRepository) SaveProfile(ctx context.Context, p *models.UserProfile) error {
	return apperr.FromDB(r.db.WithContext(ctx).Save(p).Error)
}

// AdminRole returns "" for users without an admin_users row.
func (r *UserRepository) AdminRole(ctx context.Context, userID uint) (string, error) {
	var roles []string
	err := r.db.WithContext(ctx).Model(&models.AdminUser{}).
		Where("user_id = ?", userID).Limit(1).Pluck("role", &roles).Error
	if err != nil {
		return "", apperr.FromDB(err)
	}
	if len(roles) == 0 {
		return "", nil
	}
	return roles[0], nil
}

func (r *UserRepository) Admins(ctx context.Context) ([]models.AdminUser, error) {
	admins := []models.AdminUser{}
	err := r.db.WithContext(ctx).Preload("User.Profile").Order("id ASC").Find(&admins).Error
	return admins, apperr.FromDB(err)
}
