package migrations

import (
	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/pkg/migration"
)

func init() {
	migration.Register("20240101000001_create_user_tables", &createUserTables{})
}

type createUserTables struct{}

func (createUserTables) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.UserProfile{}, &models.AdminUser{})
}

func (createUserTables) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&models.AdminUser{}, &models.UserProfile{}, &models.User{})
}
