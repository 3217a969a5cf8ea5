package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/pkg/apperr"
	"github.com/buddyengineerz/storefront/pkg/orm"
)

// OrderFilter narrows the admin order list.
type OrderFilter struct {
	Status        string
	PaymentStatus string
	Search        string // order number or customer email
	From          *time.Time
	To            *time.Time
	UserID        uint
}

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// List returns a page of orders, newest first, with items loaded.
func (r *OrderRepository) List(ctx context.Context, f OrderFilter, page orm.Page) ([]models.Order, orm.Pagination, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{})
	if f.UserID != 0 {
		q = q.Where("orders.user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("orders.status = ?", f.Status)
	}
	if f.PaymentStatus != "" {
		q = q.Where("orders.payment_status = ?", f.PaymentStatus)
	}
	if s := strings.TrimSpace(strings.ToLower(f.Search)); s != "" {
		like := "%" + escapeLike(s) + "%"
		q = q.Where("LOWER(orders.order_number) LIKE ? OR orders.user_id IN (?)", like,
			r.db.Model(&models.User{}).Select("id").Where("LOWER(email) LIKE ?", like))
	}
	if f.From != nil {
		q = q.Where("orders.created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("orders.created_at < ?", *f.To)
	}
	q = q.Order("orders.created_at DESC, orders.id DESC")

	orders := []models.Order{}
	p, err := orm.Paginate(q, page, &orders)
	if err != nil {
		return nil, orm.Pagination{}, apperr.FromDB(err)
	}
	if err := r.loadRelations(ctx, orders); err != nil {
		return nil, orm.Pagination{}, err
	}
	return orders, p, nil
}

func (r *OrderRepository) loadRelations(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]uint, len(orders))
	userIDs := make([]uint, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		userIDs[i] = o.UserID
	}

	var items []models.OrderItem
	if err := r.db.WithContext(ctx).Where("order_id IN ?", ids).Order("id ASC").Find(&items).Error; err != nil {
		return apperr.FromDB(err)
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Preload("Profile").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return apperr.FromDB(err)
	}

	byOrder := make(map[uint][]models.OrderItem, len(orders))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	byUser := make(map[uint]*models.User, len(users))
	for i := range users {
		byUser[users[i].ID] = &users[i]
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
		orders[i].User = byUser[orders[i].UserID]
	}
	return nil
}

// Find loads an order with items. A non-zero userID scopes the lookup so
// another customer's order reads as NotFound.
func (r *OrderRepository) Find(ctx context.Context, id, userID uint) (models.Order, error) {
	var o models.Order
	q := r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).Preload("User.Profile")
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.First(&o, id).Error; err != nil {
		return o, notFound(err, "Order not found")
	}
	return o, nil
}

// FindByIdempotencyKey returns the order a user already placed with key.
func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, userID uint, key string) (models.Order, bool, error) {
	var o models.Order
	err := r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("user_id = ? AND idempotency_key = ?", userID, key).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return o, false, nil
		}
		return o, false, apperr.FromDB(err)
	}
	return o, true, nil
}

// All returns orders in a date range for exports.
func (r *OrderRepository) All(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	orders, _, err := r.List(ctx, f, orm.Page{Number: 1, PerPage: orm.MaxPerPage})
	if err != nil {
		return nil, err
	}
	p := orm.Page{Number: 2, PerPage: orm.MaxPerPage}
	for len(orders) == (p.Number-1)*p.PerPage {
		more, _, err := r.List(ctx, f, p)
		if err != nil {
			return nil, err
		}
		if len(more) == 0 {
			break
		}
		orders = append(orders, more...)
		p.Number++
	}
	return orders, nil
}
