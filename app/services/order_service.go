package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/buddyengineerz/storefront/app/cart"
	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/app/repositories"
	"github.com/buddyengineerz/storefront/pkg/apperr"
	"github.com/buddyengineerz/storefront/pkg/event"
	"github.com/buddyengineerz/storefront/pkg/logger"
	"github.com/buddyengineerz/storefront/pkg/metrics"
	"github.com/buddyengineerz/storefront/pkg/orm"
	"github.com/buddyengineerz/storefront/pkg/validate"
)

// OrderEvent is the payload of every order event.
type OrderEvent struct {
	Order models.Order
	// From and To are the old and new status for status and payment
	// events. Both are empty for order.placed.
	From string
	To   string
}

// OrderService places orders and moves them through their lifecycle.
// Every status write goes through models.CanTransition and is a
// compare-and-swap on the current status.
type OrderService struct {
	db     *gorm.DB
	orders *repositories.OrderRepository
	carts  cart.Store
	rules  PricingRules
	now    func() time.Time
}

func NewOrderService(db *gorm.DB, carts cart.Store, rules PricingRules) *OrderService {
	return &OrderService{
		db:     db,
		orders: repositories.NewOrderRepository(db),
		carts:  carts,
		rules:  rules,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type PlaceOrderInput struct {
	AddressID     uint   `json:"address_id" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"required,in=cod,online"`
	Notes         string `json:"notes" validate:"max=1000"`
}

// PlaceOrder turns the user's cart into an order. Stock checks, stock
// decrements and the order insert share one transaction. A repeated
// idempotency key returns the original order with replayed set.
func (s *OrderService) PlaceOrder(ctx context.Context, userID uint, in PlaceOrderInput, idempotencyKey string) (order models.Order, replayed bool, err error) {
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		return order, false, apperr.Invalid(errs)
	}
	key := strings.TrimSpace(idempotencyKey)
	if len(key) > 128 {
		return order, false, apperr.Field("idempotency_key", "The idempotency key may not be greater than 128 characters.")
	}
	if key != "" {
		if prev, found, err := s.orders.FindByIdempotencyKey(ctx, userID, key); err != nil {
			return order, false, err
		} else if found {
			logger.WithCtx(ctx).Info("orders: idempotent replay", "order_number", prev.OrderNumber, "user_id", userID)
			return prev, true, nil
		}
	} else {
		key = uuid.NewString()
	}

	owner := cart.UserOwner(userID)
	items, err := s.carts.Items(ctx, owner)
	if err != nil {
		return order, false, apperr.Wrap(apperr.Unavailable, "Cart unavailable", err)
	}
	if len(items) == 0 {
		return order, false, apperr.Field("cart", "Your cart is empty.")
	}

	order = models.Order{
		OrderNumber:    s.orderNumber(),
		UserID:         userID,
		Status:         models.OrderPending,
		PaymentStatus:  models.PaymentPending,
		PaymentMethod:  in.PaymentMethod,
		Notes:          in.Notes,
		IdempotencyKey: key,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var addr models.Address
		if err := tx.Where("id = ? AND user_id = ?", in.AddressID, userID).First(&addr).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Field("address_id", "The selected address does not exist.")
			}
			return err
		}
		order.ShippingAddress = addr.Snapshot()

		products, err := lockProducts(tx, items)
		if err != nil {
			return err
		}

		lines := make([]PriceLine, 0, len(items))
		for _, it := range items {
			p, ok := products[it.ProductID]
			if !ok || !p.IsActive {
				return apperr.Conflictf("%s is no longer available", it.Name)
			}
			order.Items = append(order.Items, models.OrderItem{
				ProductID:    p.ID,
				ProductName:  p.Name,
				ProductImage: p.FirstImage(),
				Size:         it.Size,
				Color:        it.Color,
				Price:        p.Price,
				Quantity:     it.Quantity,
				LineTotal:    p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))),
			})
			lines = append(lines, PriceLine{Price: p.Price, Quantity: it.Quantity})
		}

		for id, qty := range quantitiesByProduct(items) {
			p := products[id]
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", id, qty).
				UpdateColumn("stock", gorm.Expr("stock - ?", qty))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return stockConflict(p)
			}
		}

		t := s.rules.Compute(lines)
		order.Subtotal = t.Subtotal
		order.ShippingCost = t.Shipping
		order.TaxAmount = t.Tax
		order.TotalAmount = t.Total

		return tx.Create(&order).Error
	})
	if err != nil {
		err = apperr.FromDB(err)
		// a concurrent request with the same key won the unique index
		if apperr.Is(err, apperr.Conflict) {
			if prev, found, lookupErr := s.orders.FindByIdempotencyKey(ctx, userID, key); lookupErr == nil && found {
				return prev, true, nil
			}
		}
		return models.Order{}, false, err
	}

	// only what was ordered leaves the cart; lines added meanwhile stay
	if err := cart.Subtract(ctx, s.carts, owner, items); err != nil {
		logger.WithCtx(ctx).Warn("orders: cart not cleared after checkout", "user_id", userID, "error", err)
	}

	placed, err := s.orders.Find(ctx, order.ID, 0)
	if err != nil {
		return order, false, err
	}
	total, _ := placed.TotalAmount.Float64()
	metrics.RecordOrderPlaced(placed.PaymentMethod, total)
	logger.WithCtx(ctx).Info("orders: placed",
		"order_number", placed.OrderNumber, "user_id", userID, "total", placed.TotalAmount.String(), "items", placed.ItemCount())
	event.FireAsync(ctx, event.OrderPlaced, OrderEvent{Order: placed})
	return placed, false, nil
}

// orderNumber is BE-YYYYMMDD-XXXXXXXX.
func (s *OrderService) orderNumber() string {
	frag := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("BE-%s-%s", s.now().Format("20060102"), frag)
}

func quantitiesByProduct(items []cart.Item) map[uint]int {
	out := make(map[uint]int, len(items))
	for _, it := range items {
		out[it.ProductID] += it.Quantity
	}
	return out
}

// lockProducts loads the cart's products with row locks, in id order so
// concurrent checkouts lock in the same sequence.
func lockProducts(tx *gorm.DB, items []cart.Item) (map[uint]models.Product, error) {
	ids := make([]uint, 0, len(items))
	for id := range quantitiesByProduct(items) {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var ps []models.Product
	if err := forUpdate(tx).Where("id IN ?", ids).Order("id ASC").Find(&ps).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]models.Product, len(ps))
	for _, p := range ps {
		out[p.ID] = p
	}
	return out, nil
}

// forUpdate adds SELECT ... FOR UPDATE on dialects that support it. SQLite
// serialises writers anyway and SQL Server uses a different syntax.
func forUpdate(tx *gorm.DB) *gorm.DB {
	switch tx.Dialector.Name() {
	case "postgres", "mysql":
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	default:
		return tx
	}
}

func (s *OrderService) ListMyOrders(ctx context.Context, userID uint, page orm.Page) ([]models.Order, orm.Pagination, error) {
	return s.orders.List(ctx, repositories.OrderFilter{UserID: userID}, page)
}

// GetMyOrder returns NotFound for another user's order.
func (s *OrderService) GetMyOrder(ctx context.Context, userID, id uint) (models.Order, error) {
	return s.orders.Find(ctx, id, userID)
}

func (s *OrderService) AdminListOrders(ctx context.Context, f repositories.OrderFilter, page orm.Page) ([]models.Order, orm.Pagination, error) {
	if f.Status != "" && !models.OrderStatus(f.Status).Valid() {
		return nil, orm.Pagination{}, apperr.Field("status", "The selected status is invalid.")
	}
	if f.PaymentStatus != "" && !models.PaymentStatus(f.PaymentStatus).Valid() {
		return nil, orm.Pagination{}, apperr.Field("payment_status", "The selected payment status is invalid.")
	}
	return s.orders.List(ctx, f, page)
}

func (s *OrderService) AdminGetOrder(ctx context.Context, id uint) (models.Order, error) {
	return s.orders.Find(ctx, id, 0)
}

type CancelInput struct {
	Reason string `json:"reason" validate:"max=500"`
}

// CancelOrder cancels the user's own order while it is pending or
// confirmed and puts its stock back.
func (s *OrderService) CancelOrder(ctx context.Context, userID, id uint, in CancelInput) (models.Order, error) {
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		return models.Order{}, apperr.Invalid(errs)
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = "Cancelled by customer"
	}
	return s.transition(ctx, id, userID, models.OrderCancelled, reason)
}

type StatusInput struct {
	Status string `json:"status" validate:"required,in=pending,confirmed,processing,shipped,delivered,cancelled"`
	Reason string `json:"reason" validate:"max=500"`
}

func (s *OrderService) AdminUpdateStatus(ctx context.Context, id uint, in StatusInput) (models.Order, error) {
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		return models.Order{}, apperr.Invalid(errs)
	}
	reason := in.Reason
	if reason == "" && in.Status == string(models.OrderCancelled) {
		reason = "Cancelled by store"
	}
	return s.transition(ctx, id, 0, models.OrderStatus(in.Status), reason)
}

func (s *OrderService) transition(ctx context.Context, id, userID uint, to models.OrderStatus, reason string) (models.Order, error) {
	var from models.OrderStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := lockOrder(tx, id, userID)
		if err != nil {
			return err
		}
		from = o.Status
		return s.applyStatus(tx, &o, to, reason)
	})
	if err != nil {
		return models.Order{}, apperr.FromDB(err)
	}

	o, err := s.orders.Find(ctx, id, 0)
	if err != nil {
		return o, err
	}
	metrics.RecordTransition("status", string(to))
	logger.WithCtx(ctx).Info("orders: status changed", "order_number", o.OrderNumber, "from", from, "to", to)
	event.FireAsync(ctx, event.OrderStatusChanged, OrderEvent{Order: o, From: string(from), To: string(to)})
	return o, nil
}

func lockOrder(tx *gorm.DB, id, userID uint) (models.Order, error) {
	var o models.Order
	q := forUpdate(tx)
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return o, apperr.NotFoundf("Order not found")
		}
		return o, err
	}
	return o, nil
}

// applyStatus writes one guarded status change. Cancelling restores stock
// and stamps cancelled_at.
func (s *OrderService) applyStatus(tx *gorm.DB, o *models.Order, to models.OrderStatus, reason string) error {
	if !models.CanTransition(o.Status, to) {
		return apperr.Conflictf("Order %s cannot move from %s to %s", o.OrderNumber, o.Status, to)
	}
	now := s.now()
	updates := map[string]any{"status": to, "updated_at": now}
	if to == models.OrderCancelled {
		updates["cancelled_at"] = now
		updates["cancel_reason"] = reason
	}
	res := tx.Model(&models.Order{}).Where("id = ? AND status = ?", o.ID, o.Status).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Conflictf("Order %s was changed by someone else; reload and try again", o.OrderNumber)
	}
	if to == models.OrderCancelled {
		if err := restoreStock(tx, o.ID); err != nil {
			return err
		}
	}
	o.Status = to
	return nil
}

func restoreStock(tx *gorm.DB, orderID uint) error {
	var items []models.OrderItem
	if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return err
	}
	for _, it := range items {
		err := tx.Unscoped().Model(&models.Product{}).Where("id = ?", it.ProductID).
			UpdateColumn("stock", gorm.Expr("stock + ?", it.Quantity)).Error
		if err != nil {
			return err
		}
	}
	return nil
}

type PaymentInput struct {
	Status    string `json:"payment_status" validate:"required,in=pending,completed,failed,refunded"`
	PaymentID string `json:"payment_id" validate:"max=128"`
}

// UpdatePaymentStatus records a payment result. A completed payment
// confirms a pending order in the same transaction. Only admins may
// refund; userID scopes the order for customers and is 0 for admins.
//
// The customer route is a stand-in for a payment gateway callback. It
// trusts the client's reported status; a production deployment must
// replace it with a webhook that verifies the gateway's signature.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, id, userID uint, in PaymentInput) (models.Order, error) {
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		return models.Order{}, apperr.Invalid(errs)
	}
	to := models.PaymentStatus(in.Status)
	if to == models.PaymentRefunded && userID != 0 {
		return models.Order{}, apperr.New(apperr.Forbidden, "Only the store can issue refunds")
	}

	var (
		from      models.PaymentStatus
		confirmed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := lockOrder(tx, id, userID)
		if err != nil {
			return err
		}
		from = o.PaymentStatus
		if !models.CanTransitionPayment(from, to) {
			return apperr.Conflictf("Payment for order %s cannot move from %s to %s", o.OrderNumber, from, to)
		}
		updates := map[string]any{"payment_status": to, "updated_at": s.now()}
		if in.PaymentID != "" {
			updates["payment_id"] = in.PaymentID
		}
		res := tx.Model(&models.Order{}).Where("id = ? AND payment_status = ?", o.ID, from).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflictf("Order %s was changed by someone else; reload and try again", o.OrderNumber)
		}
		if to == models.PaymentCompleted && o.Status == models.OrderPending {
			if err := s.applyStatus(tx, &o, models.OrderConfirmed, ""); err != nil {
				return err
			}
			confirmed = true
		}
		return nil
	})
	if err != nil {
		return models.Order{}, apperr.FromDB(err)
	}

	o, err := s.orders.Find(ctx, id, 0)
	if err != nil {
		return o, err
	}
	metrics.RecordTransition("payment", string(to))
	logger.WithCtx(ctx).Info("orders: payment changed", "order_number", o.OrderNumber, "from", from, "to", to)
	event.FireAsync(ctx, event.OrderPaymentChanged, OrderEvent{Order: o, From: string(from), To: string(to)})
	if confirmed {
		metrics.RecordTransition("status", string(models.OrderConfirmed))
		event.FireAsync(ctx, event.OrderStatusChanged, OrderEvent{Order: o, From: string(models.OrderPending), To: string(models.OrderConfirmed)})
	}
	return o, nil
}

// SweepStale cancels online orders whose payment never completed within
// maxAge and returns how many were cancelled.
func (s *OrderService) SweepStale(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge)
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("payment_method = ? AND status = ? AND payment_status IN ? AND created_at < ?",
			models.PaymentOnline, models.OrderPending,
			[]models.PaymentStatus{models.PaymentPending, models.PaymentFailed}, cutoff).
		Order("id ASC").Pluck("id", &ids).Error
	if err != nil {
		return 0, apperr.FromDB(err)
	}

	n := 0
	for _, id := range ids {
		if _, err := s.transition(ctx, id, 0, models.OrderCancelled, "Payment not received"); err != nil {
			if apperr.Is(err, apperr.Conflict) {
				continue
			}
			return n, err
		}
		n++
	}
	if n > 0 {
		logger.WithCtx(ctx).Info("orders: stale orders cancelled", "count", n, "cutoff", cutoff)
	}
	return n, nil
}
