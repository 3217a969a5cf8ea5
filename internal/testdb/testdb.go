// Package testdb opens a migrated in-memory SQLite database for tests.
package testdb

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	_ "github.com/buddyengineerz/storefront/database/migrations"
	"github.com/buddyengineerz/storefront/pkg/database"
	"github.com/buddyengineerz/storefront/pkg/migration"
)

// Open returns a fresh database private to t with every migration applied.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open("sqlite", "file:"+name+"?mode=memory&cache=shared&_foreign_keys=1")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	_, err = migration.New(db, io.Discard).Run()
	require.NoError(t, err)
	return db
}
