package services

import (
	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/app/cart"
	"github.com/buddyengineerz/storefront/app/repositories"
	"github.com/buddyengineerz/storefront/pkg/cache"
)

// Services is every storefront service built over one database handle.
type Services struct {
	Catalog   *CatalogService
	Carts     *CartService
	Orders    *OrderService
	Addresses *AddressService
	Auth      *AuthService
	Analytics *AnalyticsService
	Customers *CustomerService
	Exports   *ExportService
}

// New wires the services. db may be nil when only the route table is
// needed; no service touches it until a request arrives.
func New(db *gorm.DB, store cache.Store, carts cart.Store, rules PricingRules) *Services {
	return &Services{
		Catalog:   NewCatalogService(db, store),
		Carts:     NewCartService(repositories.NewProductRepository(db), carts, rules),
		Orders:    NewOrderService(db, carts, rules),
		Addresses: NewAddressService(db),
		Auth:      NewAuthService(db),
		Analytics: NewAnalyticsService(db),
		Customers: NewCustomerService(db),
		Exports:   NewExportService(db),
	}
}
