package migrations

import (
	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/pkg/database"
	"github.com/buddyengineerz/storefront/pkg/migration"
)

func init() {
	migration.Register("20240101000002_create_addresses_table", &createAddressesTable{})
}

type createAddressesTable struct{}

// OneDefaultIndex allows at most one default address per user.
const OneDefaultIndex = "idx_addresses_one_default"

func (createAddressesTable) Up(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Address{}); err != nil {
		return err
	}
	return db.Exec(oneDefaultDDL(database.Dialect(db))).Error
}

func (createAddressesTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&models.Address{})
}

func oneDefaultDDL(dialect string) string {
	switch dialect {
	case "sqlserver":
		return "CREATE UNIQUE INDEX " + OneDefaultIndex + " ON addresses (user_id) WHERE is_default = 1"
	case "mysql":
		// no partial indexes: a generated column is NULL for non-defaults
		return "ALTER TABLE addresses ADD COLUMN default_owner BIGINT UNSIGNED " +
			"GENERATED ALWAYS AS (IF(is_default, user_id, NULL)) STORED, " +
			"ADD UNIQUE INDEX " + OneDefaultIndex + " (default_owner)"
	default: // postgres, sqlite
		return "CREATE UNIQUE INDEX IF NOT EXISTS " + OneDefaultIndex + " ON addresses (user_id) WHERE is_default"
	}
}
