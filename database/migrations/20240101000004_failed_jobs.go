package migrations

import (
	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/pkg/migration"
	"github.com/buddyengineerz/storefront/pkg/queue"
)

func init() {
	migration.Register("20240101000004_create_failed_jobs_table", &createFailedJobsTable{})
}

type createFailedJobsTable struct{}

func (createFailedJobsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&queue.FailedJobRecord{})
}

func (createFailedJobsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&queue.FailedJobRecord{})
}
