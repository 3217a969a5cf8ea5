package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := map[OrderStatus][]OrderStatus{
		OrderPending:    {OrderConfirmed, OrderCancelled},
		OrderConfirmed:  {OrderProcessing, OrderCancelled},
		OrderProcessing: {OrderShipped},
		OrderShipped:    {OrderDelivered},
	}
	for _, from := range OrderStatuses {
		for _, to := range OrderStatuses {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCancellableOnlyFromPendingOrConfirmed(t *testing.T) {
	for _, s := range OrderStatuses {
		want := s == OrderPending || s == OrderConfirmed
		assert.Equal(t, want, s.Cancellable(), string(s))
	}
}

func TestPaymentTransitions(t *testing.T) {
	assert.True(t, CanTransitionPayment(PaymentPending, PaymentCompleted))
	assert.True(t, CanTransitionPayment(PaymentPending, PaymentFailed))
	assert.True(t, CanTransitionPayment(PaymentFailed, PaymentCompleted))
	assert.True(t, CanTransitionPayment(PaymentCompleted, PaymentRefunded))
	assert.False(t, CanTransitionPayment(PaymentPending, PaymentRefunded))
	assert.False(t, CanTransitionPayment(PaymentRefunded, PaymentCompleted))
	assert.False(t, PaymentStatus("paid").Valid())
	assert.True(t, OrderStatus("shipped").Valid())
}

func TestDiscountPercent(t *testing.T) {
	orig := decimal.NewFromInt(1299)
	p := Product{Price: decimal.NewFromInt(999), OriginalPrice: &orig}
	assert.Equal(t, 23, p.DiscountPercent())

	lower := decimal.NewFromInt(500)
	assert.Equal(t, 0, Product{Price: decimal.NewFromInt(999), OriginalPrice: &lower}.DiscountPercent())
	assert.Equal(t, 0, Product{Price: decimal.NewFromInt(999)}.DiscountPercent())
}

func TestHasOption(t *testing.T) {
	assert.True(t, HasOption(nil, "XL"))
	assert.True(t, HasOption([]string{"S", "M"}, "M"))
	assert.False(t, HasOption([]string{"S", "M"}, "XL"))
}

func TestPricesMarshalAsNumbers(t *testing.T) {
	raw, err := json.Marshal(OrderItem{Price: decimal.RequireFromString("499.50"), Quantity: 2})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"price":499.5`)
}
