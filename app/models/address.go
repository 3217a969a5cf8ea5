package models

import "time"

// Address types.
const (
	AddressHome  = "home"
	AddressWork  = "work"
	AddressOther = "other"
)

// Address is a saved shipping address. At most one per user has
// IsDefault set; a partial unique index enforces it.
type Address struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Type      string    `gorm:"size:10;not null" json:"type"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Phone     string    `gorm:"size:20;not null" json:"phone"`
	Line1     string    `gorm:"size:255;not null" json:"line1"`
	Line2     string    `gorm:"size:255" json:"line2"`
	City      string    `gorm:"size:100;not null" json:"city"`
	State     string    `gorm:"size:100;not null" json:"state"`
	Pincode   string    `gorm:"size:6;not null" json:"pincode"`
	Country   string    `gorm:"size:60;not null;default:India" json:"country"`
	IsDefault bool      `gorm:"not null" json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot copies the fields an order keeps.
func (a Address) Snapshot() AddressSnapshot {
	return AddressSnapshot{
		Name:    a.Name,
		Phone:   a.Phone,
		Line1:   a.Line1,
		Line2:   a.Line2,
		City:    a.City,
		State:   a.State,
		Pincode: a.Pincode,
		Country: a.Country,
	}
}

// AddressSnapshot is the shipping address frozen onto an order.
type AddressSnapshot struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Country string `json:"country"`
}
