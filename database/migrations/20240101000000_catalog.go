package migrations

import (
	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/pkg/migration"
)

func init() {
	migration.Register("20240101000000_create_catalog_tables", &createCatalogTables{})
}

type createCatalogTables struct{}

func (createCatalogTables) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Category{}, &models.Product{})
}

func (createCatalogTables) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&models.Product{}, &models.Category{})
}
