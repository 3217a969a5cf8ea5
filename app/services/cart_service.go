package services

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/buddyengineerz/storefront/app/cart"
	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/app/repositories"
	"github.com/buddyengineerz/storefront/pkg/apperr"
	"github.com/buddyengineerz/storefront/pkg/logger"
	"github.com/buddyengineerz/storefront/pkg/metrics"
	"github.com/buddyengineerz/storefront/pkg/validate"
)

// CartService validates cart writes against the catalogue and prices
// carts with live product data.
type CartService struct {
	products *repositories.ProductRepository
	store    cart.Store
	rules    PricingRules
}

func NewCartService(products *repositories.ProductRepository, store cart.Store, rules PricingRules) *CartService {
	return &CartService{products: products, store: store, rules: rules}
}

type AddItemInput struct {
	ProductID uint   `json:"product_id" validate:"required"`
	Size      string `json:"size" validate:"max=20"`
	Color     string `json:"color" validate:"max=40"`
	Quantity  int    `json:"quantity" validate:"required,gte=1,lte=99"`
}

type UpdateItemInput struct {
	Quantity int `json:"quantity" validate:"lte=99"`
}

// CartLine is a stored item refreshed with the product's current state.
type CartLine struct {
	cart.Item
	LineTotal decimal.Decimal `json:"line_total"`
	// Available is false when the product was removed or deactivated
	// after the line was added. Such lines are not priced.
	Available bool `json:"available"`
}

type CartView struct {
	Items  []CartLine `json:"items"`
	Totals Totals     `json:"totals"`
}

func (s *CartService) AddItem(ctx context.Context, owner cart.Owner, in AddItemInput) (CartView, error) {
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		return CartView{}, apperr.Invalid(errs)
	}
	p, err := s.checkLine(ctx, owner, in.ProductID, in.Size, in.Color, in.Quantity)
	if err != nil {
		return CartView{}, err
	}

	_, err = s.store.Add(ctx, owner, cart.Item{
		ProductID:     p.ID,
		Size:          in.Size,
		Color:         in.Color,
		Quantity:      in.Quantity,
		Name:          p.Name,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		Image:         p.FirstImage(),
		Stock:         p.Stock,
	})
	if err != nil {
		return CartView{}, apperr.Wrap(apperr.Unavailable, "Cart unavailable", err)
	}
	metrics.RecordCartOp("add")
	logger.WithCtx(ctx).Debug("cart: item added", "owner", owner, "product_id", p.ID, "quantity", in.Quantity)
	return s.View(ctx, owner)
}

// UpdateItem sets a line's quantity. Zero or less removes it.
func (s *CartService) UpdateItem(ctx context.Context, owner cart.Owner, key string, in UpdateItemInput) (CartView, error) {
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		return CartView{}, apperr.Invalid(errs)
	}
	item, ok, err := s.store.Get(ctx, owner, key)
	if err != nil {
		return CartView{}, apperr.Wrap(apperr.Unavailable, "Cart unavailable", err)
	}
	if !ok {
		return CartView{}, apperr.NotFoundf("Cart item not found")
	}
	if in.Quantity > 0 {
		p, err := s.products.Find(ctx, item.ProductID, false)
		if err != nil {
			return CartView{}, err
		}
		if in.Quantity > p.Stock {
			return CartView{}, stockConflict(p)
		}
	}
	if _, err := s.store.SetQuantity(ctx, owner, key, in.Quantity); err != nil {
		return CartView{}, apperr.Wrap(apperr.Unavailable, "Cart unavailable", err)
	}
	op := "update"
	if in.Quantity <= 0 {
		op = "remove"
	}
	metrics.RecordCartOp(op)
	return s.View(ctx, owner)
}

func (s *CartService) RemoveItem(ctx context.Context, owner cart.Owner, key string) (CartView, error) {
	if err := s.store.Remove(ctx, owner, key); err != nil {
		return CartView{}, apperr.Wrap(apperr.Unavailable, "Cart unavailable", err)
	}
	metrics.RecordCartOp("remove")
	return s.View(ctx, owner)
}

func (s *CartService) Clear(ctx context.Context, owner cart.Owner) error {
	if err := s.store.Clear(ctx, owner); err != nil {
		return apperr.Wrap(apperr.Unavailable, "Cart unavailable", err)
	}
	metrics.RecordCartOp("clear")
	return nil
}

// checkLine verifies that qty more of a product/size/color can go into
// owner's cart: the product is active, the options exist, and the line
// stays within stock.
func (s *CartService) checkLine(ctx context.Context, owner cart.Owner, productID uint, size, color string, qty int) (models.Product, error) {
	p, err := s.products.Find(ctx, productID, false)
	if err != nil {
		return p, err
	}
	if !models.HasOption(p.Sizes, size) {
		return p, apperr.Field("size", "The selected size is not available for this product.")
	}
	if !models.HasOption(p.Colors, color) {
		return p, apperr.Field("color", "The selected color is not available for this product.")
	}
	existing, _, err := s.store.Get(ctx, owner, cart.Key(p.ID, size, color))
	if err != nil {
		return p, apperr.Wrap(apperr.Unavailable, "Cart unavailable", err)
	}
	if existing.Quantity+qty > p.Stock {
		return p, stockConflict(p)
	}
	return p, nil
}

// Merge moves a guest cart into a user's cart, typically at sign-in.
// Every guest line is checked as AddItem would check it before anything
// moves, so a failed merge leaves both carts untouched.
func (s *CartService) Merge(ctx context.Context, from, to cart.Owner) (CartView, error) {
	if from == to {
		return s.View(ctx, to)
	}
	items, err := s.store.Items(ctx, from)
	if err != nil {
		return CartView{}, apperr.Wrap(apperr.Unavailable, "Cart unavailable", err)
	}
	for _, it := range items {
		if _, err := s.checkLine(ctx, to, it.ProductID, it.Size, it.Color, it.Quantity); err != nil {
			return CartView{}, err
		}
	}
	if err := cart.Merge(ctx, s.store, from, to); err != nil {
		return CartView{}, apperr.Wrap(apperr.Unavailable, "Cart unavailable", err)
	}
	metrics.RecordCartOp("merge")
	return s.View(ctx, to)
}

// View returns the cart with live prices and totals.
func (s *CartService) View(ctx context.Context, owner cart.Owner) (CartView, error) {
	items, err := s.store.Items(ctx, owner)
	if err != nil {
		return CartView{}, apperr.Wrap(apperr.Unavailable, "Cart unavailable", err)
	}
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	live, err := s.products.FindMany(ctx, ids)
	if err != nil {
		return CartView{}, err
	}

	view := CartView{Items: make([]CartLine, 0, len(items))}
	lines := make([]PriceLine, 0, len(items))
	for _, it := range items {
		line := CartLine{Item: it, LineTotal: decimal.Zero}
		if p, ok := live[it.ProductID]; ok && p.IsActive {
			line.Available = true
			line.Name = p.Name
			line.Price = p.Price
			line.OriginalPrice = p.OriginalPrice
			line.Stock = p.Stock
			if img := p.FirstImage(); img != "" {
				line.Image = img
			}
			line.LineTotal = p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
			lines = append(lines, PriceLine{Price: p.Price, Quantity: it.Quantity})
		}
		view.Items = append(view.Items, line)
	}
	view.Totals = s.rules.Compute(lines)
	return view, nil
}

// Quote is the checkout summary for the current cart.
func (s *CartService) Quote(ctx context.Context, owner cart.Owner) (Totals, error) {
	v, err := s.View(ctx, owner)
	if err != nil {
		return Totals{}, err
	}
	return v.Totals, nil
}

func stockConflict(p models.Product) error {
	if p.Stock <= 0 {
		return apperr.Conflictf("%s is out of stock", p.Name)
	}
	return apperr.Conflictf("Only %d of %s left in stock", p.Stock, p.Name)
}
