package services

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/app/repositories"
	"github.com/buddyengineerz/storefront/pkg/apperr"
	"github.com/buddyengineerz/storefront/pkg/orm"
)

// CustomerService backs the admin customer pages.
type CustomerService struct {
	db     *gorm.DB
	users  *repositories.UserRepository
	orders *repositories.OrderRepository
}

func NewCustomerService(db *gorm.DB) *CustomerService {
	return &CustomerService{
		db:     db,
		users:  repositories.NewUserRepository(db),
		orders: repositories.NewOrderRepository(db),
	}
}

// CustomerSummary is one row of the customer list. LifetimeValue leaves
// out cancelled orders.
type CustomerSummary struct {
	ID            uint            `json:"id"`
	Email         string          `json:"email"`
	FullName      string          `json:"full_name"`
	Phone         string          `json:"phone"`
	OrderCount    int64           `json:"order_count"`
	LifetimeValue decimal.Decimal `json:"lifetime_value"`
	CreatedAt     time.Time       `json:"created_at"`
}

type CustomerDetail struct {
	CustomerSummary
	Addresses []models.Address `json:"addresses"`
	Orders    []models.Order   `json:"orders"`
}

func (s *CustomerService) List(ctx context.Context, search string, page orm.Page) ([]CustomerSummary, orm.Pagination, error) {
	page = page.Normalize()
	base := s.summaryQuery(ctx)
	if q := strings.TrimSpace(strings.ToLower(search)); q != "" {
		like := "%" + strings.NewReplacer("%", "", "_", "").Replace(q) + "%"
		base = base.Where("LOWER(users.email) LIKE ? OR LOWER(user_profiles.full_name) LIKE ?", like, like)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Distinct("users.id").Count(&total).Error; err != nil {
		return nil, orm.Pagination{}, apperr.FromDB(err)
	}

	out := []CustomerSummary{}
	err := s.summarize(base).
		Order("users.created_at DESC, users.id DESC").
		Offset(page.Offset()).Limit(page.PerPage).
		Scan(&out).Error
	if err != nil {
		return nil, orm.Pagination{}, apperr.FromDB(err)
	}

	last := int((total + int64(page.PerPage) - 1) / int64(page.PerPage))
	if last < 1 {
		last = 1
	}
	return out, orm.Pagination{Total: total, PerPage: page.PerPage, CurrentPage: page.Number, LastPage: last}, nil
}

func (s *CustomerService) Get(ctx context.Context, id uint) (CustomerDetail, error) {
	var sum CustomerSummary
	res := s.summarize(s.summaryQuery(ctx).Where("users.id = ?", id)).Scan(&sum)
	if res.Error != nil {
		return CustomerDetail{}, apperr.FromDB(res.Error)
	}
	if res.RowsAffected == 0 {
		return CustomerDetail{}, apperr.NotFoundf("Customer not found")
	}

	d := CustomerDetail{CustomerSummary: sum, Addresses: []models.Address{}}
	err := s.db.WithContext(ctx).Where("user_id = ?", id).
		Order("is_default DESC, created_at DESC").Find(&d.Addresses).Error
	if err != nil {
		return d, apperr.FromDB(err)
	}
	d.Orders, _, err = s.orders.List(ctx, repositories.OrderFilter{UserID: id}, orm.Page{Number: 1, PerPage: 20})
	return d, err
}

func (s *CustomerService) summaryQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table("users").
		Joins("LEFT JOIN user_profiles ON user_profiles.user_id = users.id").
		Joins("LEFT JOIN orders ON orders.user_id = users.id")
}

func (s *CustomerService) summarize(q *gorm.DB) *gorm.DB {
	return q.Select(`users.id, users.email, users.created_at,
		COALESCE(MAX(user_profiles.full_name), '') AS full_name, COALESCE(MAX(user_profiles.phone), '') AS phone,
		COUNT(orders.id) AS order_count,
		COALESCE(SUM(CASE WHEN orders.status <> ? THEN orders.total_amount ELSE 0 END), 0) AS lifetime_value`,
		models.OrderCancelled).
		Group("users.id, users.email, users.created_at")
}
