package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/pkg/apperr"
	"github.com/buddyengineerz/storefront/pkg/metrics"
)

const (
	lowStockThreshold = 5
	topN              = 5
	maxDashboardDays  = 365
)

// AnalyticsService aggregates the admin dashboard in SQL.
type AnalyticsService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: db, now: func() time.Time { return time.Now().UTC() }}
}

type ProductSales struct {
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	Units     int64           `json:"units"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type CategorySales struct {
	CategoryID uint            `json:"category_id"`
	Name       string          `json:"name"`
	Units      int64           `json:"units"`
	Revenue    decimal.Decimal `json:"revenue"`
}

type DailyRevenue struct {
	Date    string          `json:"date"`
	Orders  int64           `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

// Dashboard is the admin overview. Revenue figures leave out cancelled
// orders; ConversionRate is the percentage of customers with an order.
type Dashboard struct {
	TotalRevenue      decimal.Decimal  `json:"total_revenue"`
	TotalOrders       int64            `json:"total_orders"`
	TotalCustomers    int64            `json:"total_customers"`
	AverageOrderValue decimal.Decimal  `json:"average_order_value"`
	ConversionRate    float64          `json:"conversion_rate"`
	OrdersByStatus    map[string]int64 `json:"orders_by_status"`
	TopProducts       []ProductSales   `json:"top_products"`
	TopCategories     []CategorySales  `json:"top_categories"`
	DailyRevenue      []DailyRevenue   `json:"daily_revenue"`
	LowStock          []models.Product `json:"low_stock"`
}

// Dashboard runs the aggregate queries concurrently. days bounds the
// daily revenue series.
func (s *AnalyticsService) Dashboard(ctx context.Context, days int) (Dashboard, error) {
	if days <= 0 {
		days = 30
	}
	if days > maxDashboardDays {
		days = maxDashboardDays
	}
	defer metrics.ObserveDBQuery("analytics", time.Now())

	var (
		d            = Dashboard{OrdersByStatus: map[string]int64{}}
		revenueOrder int64
		buyers       int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	db := s.db.WithContext(gctx)

	g.Go(func() error {
		var row struct {
			Revenue decimal.Decimal
			Orders  int64
		}
		err := db.Model(&models.Order{}).
			Select("COALESCE(SUM(total_amount), 0) AS revenue, COUNT(*) AS orders").
			Where("status <> ?", models.OrderCancelled).Scan(&row).Error
		d.TotalRevenue, revenueOrder = row.Revenue, row.Orders
		return err
	})
	g.Go(func() error {
		var rows []struct {
			Status string
			N      int64
		}
		err := db.Model(&models.Order{}).Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error
		for _, st := range models.OrderStatuses {
			d.OrdersByStatus[string(st)] = 0
		}
		for _, r := range rows {
			d.OrdersByStatus[r.Status] = r.N
			d.TotalOrders += r.N
		}
		return err
	})
	g.Go(func() error {
		customers := db.Model(&models.User{}).
			Where("users.id NOT IN (?)", s.db.Model(&models.AdminUser{}).Select("user_id"))
		if err := customers.Count(&d.TotalCustomers).Error; err != nil {
			return err
		}
		return db.Model(&models.Order{}).
			Where("user_id NOT IN (?)", s.db.Model(&models.AdminUser{}).Select("user_id")).
			Distinct("user_id").Count(&buyers).Error
	})
	g.Go(func() error {
		d.TopProducts = []ProductSales{}
		return db.Table("order_items").
			Select("order_items.product_id, MAX(order_items.product_name) AS name, SUM(order_items.quantity) AS units, SUM(order_items.line_total) AS revenue").
			Joins("JOIN orders ON orders.id = order_items.order_id").
			Where("orders.status <> ?", models.OrderCancelled).
			Group("order_items.product_id").
			Order("units DESC, revenue DESC, order_items.product_id ASC").
			Limit(topN).Scan(&d.TopProducts).Error
	})
	g.Go(func() error {
		d.TopCategories = []CategorySales{}
		return db.Table("order_items").
			Select("categories.id AS category_id, categories.name AS name, SUM(order_items.quantity) AS units, SUM(order_items.line_total) AS revenue").
			Joins("JOIN orders ON orders.id = order_items.order_id").
			Joins("JOIN products ON products.id = order_items.product_id").
			Joins("JOIN categories ON categories.id = products.category_id").
			Where("orders.status <> ?", models.OrderCancelled).
			Group("categories.id, categories.name").
			Order("units DESC, revenue DESC, categories.id ASC").
			Limit(topN).Scan(&d.TopCategories).Error
	})
	g.Go(func() error {
		series, err := s.dailyRevenue(gctx, days)
		d.DailyRevenue = series
		return err
	})
	g.Go(func() error {
		d.LowStock = []models.Product{}
		return db.Where("is_active = ? AND stock < ?", true, lowStockThreshold).
			Order("stock ASC, id ASC").Limit(20).Find(&d.LowStock).Error
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, apperr.FromDB(err)
	}

	d.AverageOrderValue = decimal.Zero
	if revenueOrder > 0 {
		d.AverageOrderValue = d.TotalRevenue.Div(decimal.NewFromInt(revenueOrder)).Round(2)
	}
	if d.TotalCustomers > 0 {
		rate := decimal.NewFromInt(buyers * 100).Div(decimal.NewFromInt(d.TotalCustomers)).Round(2)
		d.ConversionRate = rate.InexactFloat64()
	}
	return d, nil
}

// dailyRevenue returns one point per day for the last days days, oldest
// first, with empty days filled in.
func (s *AnalyticsService) dailyRevenue(ctx context.Context, days int) ([]DailyRevenue, error) {
	today := s.now().Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, -(days - 1))
	day := dateExpr(s.db, "created_at")

	var rows []struct {
		Day     string
		Orders  int64
		Revenue decimal.Decimal
	}
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Select(day+" AS day, COUNT(*) AS orders, COALESCE(SUM(total_amount), 0) AS revenue").
		Where("status <> ? AND created_at >= ?", models.OrderCancelled, from).
		Group(day).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]DailyRevenue, len(rows))
	for _, r := range rows {
		byDay[r.Day] = DailyRevenue{Date: r.Day, Orders: r.Orders, Revenue: r.Revenue}
	}
	out := make([]DailyRevenue, 0, days)
	for t := from; !t.After(today); t = t.AddDate(0, 0, 1) {
		key := t.Format("2006-01-02")
		if p, ok := byDay[key]; ok {
			out = append(out, p)
			continue
		}
		out = append(out, DailyRevenue{Date: key, Revenue: decimal.Zero})
	}
	return out, nil
}

// dateExpr formats a timestamp column as YYYY-MM-DD for the connected
// dialect.
func dateExpr(db *gorm.DB, column string) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "TO_CHAR(" + column + ", 'YYYY-MM-DD')"
	case "mysql":
		return "DATE_FORMAT(" + column + ", '%Y-%m-%d')"
	case "sqlserver":
		return "CONVERT(varchar(10), " + column + ", 23)"
	default:
		// sqlite stores timestamps as ISO text
		return "substr(" + column + ", 1, 10)"
	}
}
