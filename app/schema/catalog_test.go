package schema

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/app/services"
	"github.com/buddyengineerz/storefront/internal/testdb"
	"github.com/buddyengineerz/storefront/pkg/cache"
)

func seeded(t *testing.T) graphql.Schema {
	t.Helper()
	db := testdb.Open(t)

	tees := models.Category{Name: "Tees", Slug: "tees", IsActive: true}
	require.NoError(t, db.Create(&tees).Error)

	orig := decimal.NewFromInt(999)
	for _, p := range []models.Product{
		{Name: "Segfault Tee", Slug: "segfault-tee", Price: decimal.NewFromInt(799), OriginalPrice: &orig, CategoryID: &tees.ID, Stock: 10, Featured: true, IsActive: true, Gender: models.GenderUnisex},
		{Name: "Null Pointer Hoodie", Slug: "null-pointer-hoodie", Price: decimal.NewFromInt(1499), Stock: 0, IsActive: true, Gender: models.GenderMen},
		{Name: "Retired Cap", Slug: "retired-cap", Price: decimal.NewFromInt(299), Stock: 3, IsActive: false, Gender: models.GenderUnisex},
	} {
		p := p
		p.Images, p.Sizes, p.Colors, p.Tags = []string{}, []string{}, []string{}, []string{}
		require.NoError(t, db.Create(&p).Error)
	}

	s, err := New(services.NewCatalogService(db, cache.NewMemory()))
	require.NoError(t, err)
	return s
}

func run(t *testing.T, s graphql.Schema, query string) map[string]any {
	t.Helper()
	res := graphql.Do(graphql.Params{Schema: s, RequestString: query, Context: context.Background()})
	require.Empty(t, res.Errors)

	// round-trip through JSON so assertions see what clients see
	raw, err := json.Marshal(res.Data)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestProductsQuery(t *testing.T) {
	s := seeded(t)

	out := run(t, s, `{ products(sort: "price_asc") { items { name price inStock } pagination { total currentPage } } }`)
	page := out["products"].(map[string]any)
	items := page["items"].([]any)
	require.Len(t, items, 2, "inactive products are hidden")
	first := items[0].(map[string]any)
	assert.Equal(t, "Segfault Tee", first["name"])
	assert.Equal(t, 799.0, first["price"])
	assert.Equal(t, true, first["inStock"])
	assert.Equal(t, 2.0, page["pagination"].(map[string]any)["total"])

	out = run(t, s, `{ products(inStock: true, category: "tees") { items { slug discountPercent category { name } } } }`)
	items = out["products"].(map[string]any)["items"].([]any)
	require.Len(t, items, 1)
	hit := items[0].(map[string]any)
	assert.Equal(t, "segfault-tee", hit["slug"])
	assert.Equal(t, 20.0, hit["discountPercent"])
	assert.Equal(t, "Tees", hit["category"].(map[string]any)["name"])
}

func TestFeaturedAndCategories(t *testing.T) {
	s := seeded(t)

	out := run(t, s, `{ featured(limit: 4) { name } categories { slug productCount } }`)
	featured := out["featured"].([]any)
	require.Len(t, featured, 1)
	assert.Equal(t, "Segfault Tee", featured[0].(map[string]any)["name"])

	cats := out["categories"].([]any)
	require.Len(t, cats, 1)
	assert.Equal(t, "tees", cats[0].(map[string]any)["slug"])
	assert.Equal(t, 1.0, cats[0].(map[string]any)["productCount"])
}

func TestProductByIDNotFound(t *testing.T) {
	s := seeded(t)
	res := graphql.Do(graphql.Params{Schema: s, RequestString: `{ product(id: 999) { name } }`, Context: context.Background()})
	require.NotEmpty(t, res.Errors)
	assert.Nil(t, res.Data.(map[string]any)["product"])
}
