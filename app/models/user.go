package models

import "time"

// User is an authentication identity.
type User struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	Email     string       `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password  string       `gorm:"size:255;not null" json:"-"`
	Profile   *UserProfile `json:"profile,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// UserProfile holds the customer details shown at checkout.
type UserProfile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	FullName  string    `gorm:"size:255;not null" json:"full_name"`
	Phone     string    `gorm:"size:20" json:"phone"`
	AvatarURL string    `gorm:"size:512" json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Admin roles stored in admin_users.
const (
	AdminRoleAdmin      = "admin"
	AdminRoleSuperAdmin = "super_admin"
)

// AdminUser grants back-office access to a user.
type AdminUser struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Role      string    `gorm:"size:20;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
