package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func init() {
	// prices go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// Gender values a product can be filed under.
const (
	GenderMen    = "men"
	GenderWomen  = "women"
	GenderUnisex = "unisex"
)

// Product is a catalogue item. List fields are stored as JSON text so the
// schema is portable across the supported dialects.
type Product struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	Name          string           `gorm:"size:255;not null;index" json:"name"`
	Slug          string           `gorm:"size:280;not null;uniqueIndex" json:"slug"`
	Description   string           `gorm:"type:text" json:"description"`
	Price         decimal.Decimal  `gorm:"type:numeric(12,2);not null" json:"price"`
	OriginalPrice *decimal.Decimal `gorm:"type:numeric(12,2)" json:"original_price"`
	Images        []string         `gorm:"serializer:json;type:text" json:"images"`
	Sizes         []string         `gorm:"serializer:json;type:text" json:"sizes"`
	Colors        []string         `gorm:"serializer:json;type:text" json:"colors"`
	Tags          []string         `gorm:"serializer:json;type:text" json:"tags"`
	CategoryID    *uint            `gorm:"index" json:"category_id"`
	Category      *Category        `gorm:"constraint:OnDelete:RESTRICT" json:"category,omitempty"`
	Stock         int              `gorm:"not null" json:"stock"`
	Featured      bool             `gorm:"not null;index" json:"featured"`
	Gender        string           `gorm:"size:10;not null;default:unisex" json:"gender"`
	IsActive      bool             `gorm:"not null;index" json:"is_active"`

	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// DiscountPercent is the rounded markdown from the original price, or 0.
func (p Product) DiscountPercent() int {
	if p.OriginalPrice == nil || !p.OriginalPrice.GreaterThan(p.Price) || p.OriginalPrice.IsZero() {
		return 0
	}
	off := p.OriginalPrice.Sub(p.Price).Div(*p.OriginalPrice).Mul(decimal.NewFromInt(100))
	return int(off.Round(0).IntPart())
}

// HasOption reports whether v is allowed for a product that declares
// options. An empty option list accepts anything.
func HasOption(options []string, v string) bool {
	if len(options) == 0 {
		return true
	}
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}

// FirstImage returns the first image or "".
func (p Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
