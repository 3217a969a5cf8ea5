package migrations

import (
	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/pkg/migration"
)

func init() {
	migration.Register("20240101000003_create_orders_tables", &createOrdersTables{})
}

type createOrdersTables struct{}

func (createOrdersTables) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Order{}, &models.OrderItem{})
}

func (createOrdersTables) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&models.OrderItem{}, &models.Order{})
}
