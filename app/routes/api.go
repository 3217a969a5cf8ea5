// Package routes is the storefront's route table.
package routes

import (
	"net/http"

	"github.com/buddyengineerz/storefront/app/controllers"
	"github.com/buddyengineerz/storefront/app/services"
	"github.com/buddyengineerz/storefront/pkg/auth"
	"github.com/buddyengineerz/storefront/pkg/ctx"
	"github.com/buddyengineerz/storefront/pkg/middleware"
	"github.com/buddyengineerz/storefront/pkg/rbac"
	"github.com/buddyengineerz/storefront/pkg/router"
	"github.com/buddyengineerz/storefront/pkg/storage"
)

// Deps is what the route table needs besides the services.
type Deps struct {
	Services *services.Services
	// Disk receives product image uploads. Nil disables uploads.
	Disk storage.Disk
	// GraphQL serves /graphql when set.
	GraphQL http.Handler
	// OrderFeed serves the admin WebSocket feed when set.
	OrderFeed http.Handler
	APIKey    string
}

// Register mounts every storefront route on r.
func Register(r *router.Router, d Deps) {
	s := d.Services
	var (
		authC    = controllers.NewAuthController(s)
		catalogC = controllers.NewCatalogController(s)
		cartC    = controllers.NewCartController(s)
		addressC = controllers.NewAddressController(s)
		orderC   = controllers.NewOrderController(s)
		adminC   = controllers.NewAdminController(s)
		adminCat = controllers.NewAdminCatalogController(s, d.Disk)
	)
	apiKey := middleware.APIKey(d.APIKey)

	if d.GraphQL != nil {
		r.Handle("/graphql", "graphql", d.GraphQL, apiKey)
	}

	api := r.Group("/api", apiKey)

	// Public catalogue
	api.Get("/categories", "categories.index", ctx.Wrap(catalogC.Categories))
	api.Get("/products", "products.index", ctx.Wrap(catalogC.Products))
	api.Get("/products/featured", "products.featured", ctx.Wrap(catalogC.Featured))
	api.Get("/products/slug/{slug}", "products.slug", ctx.Wrap(catalogC.ShowBySlug))
	api.Get("/products/{id}", "products.show", ctx.Wrap(catalogC.Show))
	api.Get("/products/{id}/related", "products.related", ctx.Wrap(catalogC.Related))

	// Auth
	api.Post("/auth/signup", "auth.signup", ctx.Wrap(authC.SignUp))
	api.Post("/auth/signin", "auth.signin", ctx.Wrap(authC.SignIn))
	me := api.Group("/auth", middleware.Authenticate)
	me.Get("/me", "auth.me", ctx.Wrap(authC.Me))
	me.Put("/me", "auth.me.update", ctx.Wrap(authC.UpdateMe))

	// Cart, for guests and users alike
	cart := api.Group("/cart", middleware.OptionalAuth)
	cart.Get("/", "cart.show", ctx.Wrap(cartC.Show))
	cart.Delete("/", "cart.clear", ctx.Wrap(cartC.Clear))
	cart.Get("/quote", "cart.quote", ctx.Wrap(cartC.Quote))
	cart.Post("/items", "cart.items.store", ctx.Wrap(cartC.Add))
	cart.Patch("/items/{key}", "cart.items.update", ctx.Wrap(cartC.Update))
	cart.Delete("/items/{key}", "cart.items.destroy", ctx.Wrap(cartC.Remove))
	api.Post("/cart/merge", "cart.merge", ctx.Wrap(cartC.Merge), middleware.Authenticate)

	// Address book
	addr := api.Group("/addresses", middleware.Authenticate)
	addr.Get("/", "addresses.index", ctx.Wrap(addressC.Index))
	addr.Post("/", "addresses.store", ctx.Wrap(addressC.Store))
	addr.Get("/{id}", "addresses.show", ctx.Wrap(addressC.Show))
	addr.Put("/{id}", "addresses.update", ctx.Wrap(addressC.Update))
	addr.Delete("/{id}", "addresses.destroy", ctx.Wrap(addressC.Destroy))
	addr.Post("/{id}/default", "addresses.default", ctx.Wrap(addressC.MakeDefault))

	// Orders
	orders := api.Group("/orders", middleware.Authenticate)
	orders.Post("/", "orders.store", ctx.Wrap(orderC.Store))
	orders.Get("/", "orders.index", ctx.Wrap(orderC.Index))
	orders.Get("/{id}", "orders.show", ctx.Wrap(orderC.Show))
	orders.Post("/{id}/cancel", "orders.cancel", ctx.Wrap(orderC.Cancel))
	// stand-in for a signed gateway callback
	orders.Post("/{id}/payment", "orders.payment", ctx.Wrap(orderC.Payment))

	// Back office. RequireAdmin swaps in the stored admin role, so HasRole
	// below sees admin_users rather than the token's claim.
	admin := r.Group("/admin", middleware.Authenticate, rbac.RequireAdmin(s.Auth))
	admin.Get("/dashboard", "admin.dashboard", ctx.Wrap(adminC.Dashboard))

	admin.Get("/products", "admin.products.index", ctx.Wrap(adminCat.Products))
	admin.Post("/products", "admin.products.store", ctx.Wrap(adminCat.StoreProduct))
	admin.Get("/products/{id}", "admin.products.show", ctx.Wrap(adminCat.ShowProduct))
	admin.Put("/products/{id}", "admin.products.update", ctx.Wrap(adminCat.UpdateProduct))
	admin.Delete("/products/{id}", "admin.products.destroy", ctx.Wrap(adminCat.DestroyProduct))
	admin.Post("/products/{id}/images", "admin.products.images", ctx.Wrap(adminCat.UploadImage))
	admin.Patch("/products/{id}/stock", "admin.products.stock", ctx.Wrap(adminCat.AdjustStock))

	admin.Get("/categories", "admin.categories.index", ctx.Wrap(adminCat.Categories))
	admin.Post("/categories", "admin.categories.store", ctx.Wrap(adminCat.StoreCategory))
	admin.Put("/categories/{id}", "admin.categories.update", ctx.Wrap(adminCat.UpdateCategory))
	admin.Delete("/categories/{id}", "admin.categories.destroy", ctx.Wrap(adminCat.DestroyCategory))

	admin.Get("/customers", "admin.customers.index", ctx.Wrap(adminC.Customers))
	admin.Get("/customers/{id}", "admin.customers.show", ctx.Wrap(adminC.ShowCustomer))

	admin.Get("/orders", "admin.orders.index", ctx.Wrap(adminC.Orders))
	admin.Get("/orders/{id}", "admin.orders.show", ctx.Wrap(adminC.ShowOrder))
	admin.Patch("/orders/{id}/status", "admin.orders.status", ctx.Wrap(adminC.UpdateOrderStatus))
	admin.Patch("/orders/{id}/payment", "admin.orders.payment", ctx.Wrap(adminC.UpdateOrderPayment))

	admin.Get("/exports/products.xlsx", "admin.exports.products", ctx.Wrap(adminC.ExportProducts))
	admin.Get("/exports/orders.xlsx", "admin.exports.orders", ctx.Wrap(adminC.ExportOrders))

	if d.OrderFeed != nil {
		admin.Handle("/ws/orders", "admin.ws.orders", d.OrderFeed)
	}

	supers := admin.Group("/admins", rbac.HasRole(auth.RoleSuperAdmin))
	supers.Get("/", "admin.admins.index", ctx.Wrap(adminC.Admins))
	supers.Post("/", "admin.admins.store", ctx.Wrap(adminC.GrantAdmin))
	supers.Delete("/{userID}", "admin.admins.destroy", ctx.Wrap(adminC.RevokeAdmin))
}
