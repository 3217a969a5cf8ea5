package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment methods.
const (
	PaymentCOD    = "cod"
	PaymentOnline = "online"
)

// Order is a placed order. Totals and items are snapshots taken when the
// order was created and never recomputed.
type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	OrderNumber     string          `gorm:"size:32;not null;uniqueIndex" json:"order_number"`
	UserID          uint            `gorm:"not null;index;uniqueIndex:idx_orders_user_idempotency,priority:1" json:"user_id"`
	User            *User           `json:"user,omitempty"`
	Status          OrderStatus     `gorm:"size:20;not null;index" json:"status"`
	PaymentStatus   PaymentStatus   `gorm:"size:20;not null;index" json:"payment_status"`
	PaymentMethod   string          `gorm:"size:20;not null" json:"payment_method"`
	PaymentID       string          `gorm:"size:128" json:"payment_id,omitempty"`
	Subtotal        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	ShippingCost    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"shipping_cost"`
	TaxAmount       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"tax_amount"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	ShippingAddress AddressSnapshot `gorm:"serializer:json;type:text;not null" json:"shipping_address"`
	Notes           string          `gorm:"type:text" json:"notes,omitempty"`
	IdempotencyKey  string          `gorm:"size:128;not null;uniqueIndex:idx_orders_user_idempotency,priority:2" json:"-"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	CancelReason    string          `gorm:"size:500" json:"cancel_reason,omitempty"`
	Items           []OrderItem     `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ItemCount sums item quantities.
func (o Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// OrderItem is a product line frozen at order time.
type OrderItem struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	OrderID      uint            `gorm:"not null;index" json:"order_id"`
	ProductID    uint            `gorm:"not null;index" json:"product_id"`
	ProductName  string          `gorm:"size:255;not null" json:"product_name"`
	ProductImage string          `gorm:"size:512" json:"product_image"`
	Size         string          `gorm:"size:20" json:"size"`
	Color        string          `gorm:"size:40" json:"color"`
	Price        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Quantity     int             `gorm:"not null" json:"quantity"`
	LineTotal    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"line_total"`
	CreatedAt    time.Time       `json:"created_at"`
}
