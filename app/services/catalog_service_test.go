package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/app/repositories"
	"github.com/buddyengineerz/storefront/pkg/apperr"
	"github.com/buddyengineerz/storefront/pkg/orm"
)

func TestListProductsFilters(t *testing.T) {
	f := newFixture(t)
	tees := f.category("tees")
	f.product("segfault-tee", 799, 10, withCategory(tees), withGender(models.GenderMen))
	f.product("null-pointer-tee", 999, 0, withCategory(tees), withGender(models.GenderWomen))
	f.product("merge-hoodie", 1899, 3, withGender(models.GenderUnisex), withOptions([]string{"M", "L"}, []string{"Black"}))
	f.product("hidden", 100, 5, inactive)

	svc := f.catalog()
	page, err := svc.ListProducts(f.ctx, repositories.ProductFilter{}, orm.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Pagination.Total, "inactive products are hidden")

	page, err = svc.ListProducts(f.ctx, repositories.ProductFilter{Gender: models.GenderMen}, orm.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Pagination.Total, "unisex shows under men")

	page, err = svc.ListProducts(f.ctx, repositories.ProductFilter{Category: "cat-tees", InStock: true}, orm.Page{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "segfault-tee", page.Items[0].Name)
	require.NotNil(t, page.Items[0].Category)
	assert.Equal(t, "tees", page.Items[0].Category.Name)

	page, err = svc.ListProducts(f.ctx, repositories.ProductFilter{Size: "L", Color: "Black"}, orm.Page{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "merge-hoodie", page.Items[0].Name)

	page, err = svc.ListProducts(f.ctx, repositories.ProductFilter{Search: "POINTER"}, orm.Page{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	page, err = svc.ListProducts(f.ctx, repositories.ProductFilter{Sort: repositories.SortPriceAsc}, orm.Page{Number: 1, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "segfault-tee", page.Items[0].Name)
	assert.Equal(t, 2, page.Pagination.LastPage)
}

func TestGetProductHidesInactive(t *testing.T) {
	f := newFixture(t)
	p := f.product("hidden", 100, 5, inactive)

	_, err := f.catalog().GetProduct(f.ctx, p.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))

	got, err := f.catalog().AdminGetProduct(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestFeaturedIsCachedUntilWrite(t *testing.T) {
	f := newFixture(t)
	f.product("first", 500, 5, featured)
	svc := f.catalog()

	list, err := svc.FeaturedProducts(f.ctx, 8)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// a write behind the service's back is not visible while cached
	f.product("sneaky", 500, 5, featured)
	list, err = svc.FeaturedProducts(f.ctx, 8)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.CreateProduct(f.ctx, ProductInput{Name: "Stack Overflow Cap", Price: 499, Gender: models.GenderUnisex, Featured: true})
	require.NoError(t, err)
	list, err = svc.FeaturedProducts(f.ctx, 8)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestRelatedProducts(t *testing.T) {
	f := newFixture(t)
	tees := f.category("tees")
	a := f.product("a", 100, 1, withCategory(tees))
	f.product("b", 100, 1, withCategory(tees))
	f.product("c", 100, 1)

	related, err := f.catalog().RelatedProducts(f.ctx, a.ID, 4)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "b", related[0].Name)
}

func TestCreateProductValidationAndSlugs(t *testing.T) {
	f := newFixture(t)
	svc := f.catalog()

	_, err := svc.CreateProduct(f.ctx, ProductInput{Name: "", Price: 0, Gender: "kids"})
	require.Error(t, err)
	_, fields := apperr.Public(err)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "price")
	assert.Contains(t, fields, "gender")

	in := ProductInput{Name: "Git Push Force Tee", Price: 799, Gender: models.GenderMen, Sizes: []string{"M"}}
	p1, err := svc.CreateProduct(f.ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "git-push-force-tee", p1.Slug)
	assert.True(t, p1.IsActive)

	p2, err := svc.CreateProduct(f.ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "git-push-force-tee-2", p2.Slug)

	missing := uint(999)
	_, err = svc.CreateProduct(f.ctx, ProductInput{Name: "X", Price: 1, Gender: models.GenderMen, CategoryID: &missing})
	_, fields = apperr.Public(err)
	assert.Contains(t, fields, "category_id")
}

func TestUpdateProductPatchesOnlyGivenFields(t *testing.T) {
	f := newFixture(t)
	p := f.product("tee", 799, 4, featured)
	svc := f.catalog()

	off := false
	price := 699.0
	orig := 999.0
	got, err := svc.UpdateProduct(f.ctx, p.ID, ProductPatch{Featured: &off, Price: &price, OriginalPrice: &orig})
	require.NoError(t, err)
	assert.False(t, got.Featured)
	assert.True(t, got.Price.Equal(dec("699")))
	assert.Equal(t, 30, got.DiscountPercent())
	assert.Equal(t, 4, got.Stock)
	assert.Equal(t, "tee", got.Name)

	zero := 0.0
	got, err = svc.UpdateProduct(f.ctx, p.ID, ProductPatch{OriginalPrice: &zero})
	require.NoError(t, err)
	assert.Nil(t, got.OriginalPrice)
}

func TestAdjustStockAndDelete(t *testing.T) {
	f := newFixture(t)
	p := f.product("tee", 799, 4)
	svc := f.catalog()

	stock, err := svc.AdjustStock(f.ctx, p.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, 10, stock)

	_, err = svc.AdjustStock(f.ctx, p.ID, -11)
	assert.True(t, apperr.Is(err, apperr.Conflict))
	assert.Equal(t, 10, f.stockOf(p.ID))

	_, err = svc.AdjustStock(f.ctx, 4242, 1)
	assert.True(t, apperr.Is(err, apperr.NotFound))

	require.NoError(t, svc.DeleteProduct(f.ctx, p.ID))
	_, err = svc.AdminGetProduct(f.ctx, p.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
	assert.True(t, apperr.Is(svc.DeleteProduct(f.ctx, p.ID), apperr.NotFound))
}

func TestCategoryCRUD(t *testing.T) {
	f := newFixture(t)
	svc := f.catalog()

	c, err := svc.CreateCategory(f.ctx, CategoryInput{Name: "Hoodies & Sweatshirts", SortOrder: 2})
	require.NoError(t, err)
	assert.Equal(t, "hoodies-and-sweatshirts", c.Slug)
	assert.True(t, c.IsActive)

	_, err = svc.CreateCategory(f.ctx, CategoryInput{Name: "hoodies & sweatshirts"})
	assert.True(t, apperr.Is(err, apperr.Conflict), "same slug is a conflict")

	off := false
	c, err = svc.UpdateCategory(f.ctx, c.ID, CategoryInput{Name: "Hoodies", IsActive: &off})
	require.NoError(t, err)
	assert.Equal(t, "hoodies", c.Slug)
	assert.False(t, c.IsActive)

	public, err := svc.ListCategories(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, public)
	all, err := svc.AdminListCategories(f.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	f.product("hoodie", 1899, 2, withCategory(c))
	assert.True(t, apperr.Is(svc.DeleteCategory(f.ctx, c.ID), apperr.Conflict))
}

func TestListCategoriesCountsProducts(t *testing.T) {
	f := newFixture(t)
	tees := f.category("tees")
	f.category("caps")
	f.product("a", 100, 1, withCategory(tees))
	f.product("b", 100, 1, withCategory(tees))
	f.product("c", 100, 1, withCategory(tees), inactive)

	cats, err := f.catalog().ListCategories(f.ctx)
	require.NoError(t, err)
	counts := map[string]int64{}
	for _, c := range cats {
		counts[c.Name] = c.ProductCount
	}
	assert.Equal(t, map[string]int64{"tees": 2, "caps": 0}, counts)
}
