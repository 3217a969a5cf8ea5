package seeders_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/database/seeders"
	"github.com/buddyengineerz/storefront/internal/testdb"
)

func TestRunAllIsIdempotent(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, seeders.RunAll(ctx, db, &out, ""))
	require.NoError(t, seeders.RunAll(ctx, db, &out, ""))

	var cats, products int64
	db.Model(&models.Category{}).Count(&cats)
	db.Model(&models.Product{}).Count(&products)
	assert.EqualValues(t, 4, cats)
	assert.EqualValues(t, 12, products)
	assert.Contains(t, out.String(), "Seeding: products ... done")

	var hoodie models.Product
	require.NoError(t, db.Preload("Category").Where("slug = ?", "merge-conflict-hoodie").First(&hoodie).Error)
	assert.Equal(t, "Hoodies", hoodie.Category.Name)
	assert.Equal(t, []string{"Charcoal", "Maroon"}, hoodie.Colors)
	assert.Equal(t, 18, hoodie.DiscountPercent())
}

func TestRunOnlyUnknown(t *testing.T) {
	db := testdb.Open(t)
	err := seeders.RunAll(context.Background(), db, &bytes.Buffer{}, "nope")
	assert.EqualError(t, err, `seeder "nope" is not registered`)
}
