package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buddyengineerz/storefront/app/cart"
	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/pkg/apperr"
)

func placeInput(addr models.Address, method string) PlaceOrderInput {
	return PlaceOrderInput{AddressID: addr.ID, PaymentMethod: method}
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t)
	u := f.user("asha@example.com")
	addr := f.address(u.ID)
	p := f.product("tee", 500, 5)
	f.addToCart(u.ID, p, 2)

	o, replayed, err := f.orderService().PlaceOrder(f.ctx, u.ID, placeInput(addr, models.PaymentCOD), "key-1")
	require.NoError(t, err)
	assert.False(t, replayed)

	assert.Regexp(t, regexp.MustCompile(`^BE-\d{8}-[0-9A-F]{8}$`), o.OrderNumber)
	assert.Equal(t, models.OrderPending, o.Status)
	assert.Equal(t, models.PaymentPending, o.PaymentStatus)
	assert.True(t, o.Subtotal.Equal(dec("1000")))
	assert.True(t, o.ShippingCost.IsZero())
	assert.True(t, o.TaxAmount.Equal(dec("180")))
	assert.True(t, o.TotalAmount.Equal(dec("1180")))
	assert.Equal(t, "560001", o.ShippingAddress.Pincode)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "tee", o.Items[0].ProductName)
	assert.True(t, o.Items[0].LineTotal.Equal(dec("1000")))

	assert.Equal(t, 3, f.stockOf(p.ID))
	items, err := f.carts.Items(f.ctx, cart.UserOwner(u.ID))
	require.NoError(t, err)
	assert.Empty(t, items, "cart cleared after checkout")
}

func TestPlaceOrderIsIdempotent(t *testing.T) {
	f := newFixture(t)
	u := f.user("asha@example.com")
	addr := f.address(u.ID)
	p := f.product("tee", 500, 5)
	f.addToCart(u.ID, p, 1)
	svc := f.orderService()

	first, _, err := svc.PlaceOrder(f.ctx, u.ID, placeInput(addr, models.PaymentOnline), "same-key")
	require.NoError(t, err)

	f.addToCart(u.ID, p, 1)
	again, replayed, err := svc.PlaceOrder(f.ctx, u.ID, placeInput(addr, models.PaymentOnline), "same-key")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, again.ID)

	var n int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 4, f.stockOf(p.ID))
}

func TestPlaceOrderIsAtomic(t *testing.T) {
	f := newFixture(t)
	u := f.user("asha@example.com")
	addr := f.address(u.ID)
	a := f.product("a", 500, 5)
	b := f.product("b", 300, 5)
	f.addToCart(u.ID, a, 2)
	f.addToCart(u.ID, b, 3)

	// someone else buys b after it went into the cart
	require.NoError(t, f.db.Model(&models.Product{}).Where("id = ?", b.ID).Update("stock", 1).Error)

	_, _, err := f.orderService().PlaceOrder(f.ctx, u.ID, placeInput(addr, models.PaymentCOD), "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Conflict))

	var n int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, f.db.Model(&models.OrderItem{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Equal(t, 5, f.stockOf(a.ID))
	assert.Equal(t, 1, f.stockOf(b.ID))

	items, err := f.carts.Items(f.ctx, cart.UserOwner(u.ID))
	require.NoError(t, err)
	assert.Len(t, items, 2, "cart survives a failed checkout")
}

func TestPlaceOrderRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	u := f.user("asha@example.com")
	other := f.user("ravi@example.com")
	addr := f.address(u.ID)
	otherAddr := f.address(other.ID)
	svc := f.orderService()

	_, _, err := svc.PlaceOrder(f.ctx, u.ID, placeInput(addr, models.PaymentCOD), "")
	_, fields := apperr.Public(err)
	assert.Contains(t, fields, "cart")

	_, _, err = svc.PlaceOrder(f.ctx, u.ID, placeInput(addr, "upi"), "")
	_, fields = apperr.Public(err)
	assert.Contains(t, fields, "payment_method")

	f.addToCart(u.ID, f.product("tee", 100, 1), 1)
	_, _, err = svc.PlaceOrder(f.ctx, u.ID, placeInput(otherAddr, models.PaymentCOD), "")
	_, fields = apperr.Public(err)
	assert.Contains(t, fields, "address_id")
}

func placedOrder(t *testing.T, f *fixture, method string) (models.User, models.Order, models.Product) {
	t.Helper()
	u := f.user("asha@example.com")
	addr := f.address(u.ID)
	p := f.product("tee", 500, 5)
	f.addToCart(u.ID, p, 2)
	o, _, err := f.orderService().PlaceOrder(f.ctx, u.ID, placeInput(addr, method), "")
	require.NoError(t, err)
	return u, o, p
}

func TestCancelOrderRestoresStock(t *testing.T) {
	f := newFixture(t)
	u, o, p := placedOrder(t, f, models.PaymentCOD)
	require.Equal(t, 3, f.stockOf(p.ID))

	got, err := f.orderService().CancelOrder(f.ctx, u.ID, o.ID, CancelInput{Reason: "changed my mind"})
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, got.Status)
	assert.Equal(t, "changed my mind", got.CancelReason)
	assert.NotNil(t, got.CancelledAt)
	assert.Equal(t, 5, f.stockOf(p.ID))

	_, err = f.orderService().CancelOrder(f.ctx, u.ID, o.ID, CancelInput{})
	assert.True(t, apperr.Is(err, apperr.Conflict), "already cancelled")
	assert.Equal(t, 5, f.stockOf(p.ID))
}

func TestCancelOnlyFromPendingOrConfirmed(t *testing.T) {
	f := newFixture(t)
	u, o, _ := placedOrder(t, f, models.PaymentCOD)
	svc := f.orderService()

	for _, st := range []string{"confirmed", "processing", "shipped"} {
		_, err := svc.AdminUpdateStatus(f.ctx, o.ID, StatusInput{Status: st})
		require.NoError(t, err, st)
	}
	_, err := svc.CancelOrder(f.ctx, u.ID, o.ID, CancelInput{})
	assert.True(t, apperr.Is(err, apperr.Conflict))

	_, err = svc.AdminUpdateStatus(f.ctx, o.ID, StatusInput{Status: "pending"})
	assert.True(t, apperr.Is(err, apperr.Conflict), "no going back")

	_, err = svc.AdminUpdateStatus(f.ctx, o.ID, StatusInput{Status: "lost"})
	assert.True(t, apperr.Is(err, apperr.Validation))
}

func TestOrdersAreScopedToOwner(t *testing.T) {
	f := newFixture(t)
	_, o, _ := placedOrder(t, f, models.PaymentCOD)
	intruder := f.user("ravi@example.com")
	svc := f.orderService()

	_, err := svc.GetMyOrder(f.ctx, intruder.ID, o.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
	_, err = svc.CancelOrder(f.ctx, intruder.ID, o.ID, CancelInput{})
	assert.True(t, apperr.Is(err, apperr.NotFound))

	list, page, err := svc.ListMyOrders(f.ctx, intruder.ID, pageOne())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, page.Total)
}

func TestPaymentCompletedConfirmsOrder(t *testing.T) {
	f := newFixture(t)
	u, o, _ := placedOrder(t, f, models.PaymentOnline)
	svc := f.orderService()

	_, err := svc.UpdatePaymentStatus(f.ctx, o.ID, u.ID, PaymentInput{Status: "failed"})
	require.NoError(t, err)

	got, err := svc.UpdatePaymentStatus(f.ctx, o.ID, u.ID, PaymentInput{Status: "completed", PaymentID: "pay_123"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, got.PaymentStatus)
	assert.Equal(t, models.OrderConfirmed, got.Status)
	assert.Equal(t, "pay_123", got.PaymentID)

	_, err = svc.UpdatePaymentStatus(f.ctx, o.ID, u.ID, PaymentInput{Status: "refunded"})
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	got, err = svc.UpdatePaymentStatus(f.ctx, o.ID, 0, PaymentInput{Status: "refunded"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, got.PaymentStatus)
	assert.Equal(t, models.OrderConfirmed, got.Status)

	_, err = svc.UpdatePaymentStatus(f.ctx, o.ID, 0, PaymentInput{Status: "completed"})
	assert.True(t, apperr.Is(err, apperr.Conflict))
}

func TestSweepStaleCancelsUnpaidOnlineOrders(t *testing.T) {
	f := newFixture(t)
	_, stale, p := placedOrder(t, f, models.PaymentOnline)
	svc := f.orderService()

	n, err := svc.SweepStale(f.ctx, 48*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n, "fresh orders are left alone")

	old := time.Now().UTC().Add(-72 * time.Hour)
	require.NoError(t, f.db.Model(&models.Order{}).Where("id = ?", stale.ID).UpdateColumn("created_at", old).Error)

	n, err = svc.SweepStale(f.ctx, 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := svc.AdminGetOrder(f.ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, got.Status)
	assert.Equal(t, "Payment not received", got.CancelReason)
	assert.Equal(t, 5, f.stockOf(p.ID))
}

// lateAddStore adds a line right after checkout reads the cart, standing in
// for a second tab adding items while the order is being placed.
type lateAddStore struct {
	cart.Store
	late cart.Item
	done bool
}

func (s *lateAddStore) Items(ctx context.Context, owner cart.Owner) ([]cart.Item, error) {
	items, err := s.Store.Items(ctx, owner)
	if err != nil || s.done {
		return items, err
	}
	s.done = true
	if _, err := s.Store.Add(ctx, owner, s.late); err != nil {
		return nil, err
	}
	return items, nil
}

func TestPlaceOrderKeepsLinesAddedDuringCheckout(t *testing.T) {
	f := newFixture(t)
	u := f.user("late@example.com")
	addr := f.address(u.ID)
	tee := f.product("tee", 500, 5)
	hat := f.product("hat", 300, 5)
	f.addToCart(u.ID, tee, 2)

	store := &lateAddStore{Store: f.carts, late: cart.Item{ProductID: hat.ID, Quantity: 1, Name: "hat", Price: dec("300")}}
	o, _, err := NewOrderService(f.db, store, DefaultPricingRules()).PlaceOrder(f.ctx, u.ID, placeInput(addr, models.PaymentCOD), "key-late")
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "tee", o.Items[0].ProductName)

	items, err := f.carts.Items(f.ctx, cart.UserOwner(u.ID))
	require.NoError(t, err)
	require.Len(t, items, 1, "only the ordered line leaves the cart")
	assert.Equal(t, hat.ID, items[0].ProductID)
	assert.Equal(t, 1, items[0].Quantity)
}
