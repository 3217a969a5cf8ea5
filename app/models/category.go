package models

import "time"

// Category groups products on the storefront navigation.
type Category struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:120;not null" json:"name"`
	Slug        string `gorm:"size:140;not null;uniqueIndex" json:"slug"`
	Description string `gorm:"type:text" json:"description"`
	ImageURL    string `gorm:"size:512" json:"image_url"`
	SortOrder   int    `gorm:"not null;default:0" json:"sort_order"`
	IsActive    bool   `gorm:"not null;index" json:"is_active"`

	// ProductCount is filled by list queries that join products.
	ProductCount int64 `gorm:"->;-:migration" json:"product_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
