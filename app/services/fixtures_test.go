package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/app/cart"
	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/internal/testdb"
	"github.com/buddyengineerz/storefront/pkg/cache"
	"github.com/buddyengineerz/storefront/pkg/orm"
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	db    *gorm.DB
	carts *cart.MemoryStore
	cache *cache.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		t:     t,
		ctx:   context.Background(),
		db:    testdb.Open(t),
		carts: cart.NewMemoryStore(),
		cache: cache.NewMemory(),
	}
}

func (f *fixture) catalog() *CatalogService { return NewCatalogService(f.db, f.cache) }

func (f *fixture) cartService() *CartService {
	return NewCartService(f.catalog().products, f.carts, DefaultPricingRules())
}

func (f *fixture) orderService() *OrderService {
	return NewOrderService(f.db, f.carts, DefaultPricingRules())
}

func (f *fixture) category(name string) models.Category {
	f.t.Helper()
	c := models.Category{Name: name, Slug: fmt.Sprintf("cat-%s", name), IsActive: true}
	require.NoError(f.t, f.db.Create(&c).Error)
	return c
}

type productOpt func(*models.Product)

func withCategory(c models.Category) productOpt {
	return func(p *models.Product) { p.CategoryID = &c.ID }
}

func withOptions(sizes, colors []string) productOpt {
	return func(p *models.Product) { p.Sizes, p.Colors = sizes, colors }
}

func inactive(p *models.Product) { p.IsActive = false }
func featured(p *models.Product) { p.Featured = true }

func withGender(g string) productOpt {
	return func(p *models.Product) { p.Gender = g }
}

func (f *fixture) product(name string, price int64, stock int, opts ...productOpt) models.Product {
	f.t.Helper()
	p := models.Product{
		Name:     name,
		Slug:     fmt.Sprintf("p-%s", name),
		Price:    decimal.NewFromInt(price),
		Images:   []string{"https://cdn.example.com/" + name + ".jpg"},
		Sizes:    []string{},
		Colors:   []string{},
		Tags:     []string{},
		Stock:    stock,
		Gender:   models.GenderUnisex,
		IsActive: true,
	}
	for _, o := range opts {
		o(&p)
	}
	require.NoError(f.t, f.db.Create(&p).Error)
	return p
}

func (f *fixture) user(email string) models.User {
	f.t.Helper()
	u := models.User{Email: email, Password: "x"}
	require.NoError(f.t, f.db.Create(&u).Error)
	require.NoError(f.t, f.db.Create(&models.UserProfile{UserID: u.ID, FullName: "User " + email}).Error)
	return u
}

func (f *fixture) address(userID uint) models.Address {
	f.t.Helper()
	a, err := NewAddressService(f.db).Create(f.ctx, userID, AddressInput{
		Type:    models.AddressHome,
		Name:    "Asha Rao",
		Phone:   "9876543210",
		Line1:   "12 MG Road",
		City:    "Bengaluru",
		State:   "Karnataka",
		Pincode: "560001",
	})
	require.NoError(f.t, err)
	return a
}

func (f *fixture) addToCart(userID uint, p models.Product, qty int) {
	f.t.Helper()
	_, err := f.cartService().AddItem(f.ctx, cart.UserOwner(userID), AddItemInput{ProductID: p.ID, Quantity: qty})
	require.NoError(f.t, err)
}

func (f *fixture) stockOf(id uint) int {
	f.t.Helper()
	var stock int
	require.NoError(f.t, f.db.Unscoped().Model(&models.Product{}).Where("id = ?", id).Pluck("stock", &stock).Error)
	return stock
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func pageOne() orm.Page { return orm.Page{Number: 1, PerPage: 20} }
