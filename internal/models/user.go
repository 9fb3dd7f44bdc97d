package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the coarse permission level attached to every account.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// UserStatus gates whether an account may act at all.
type UserStatus string

const (
	UserActive  UserStatus = "ACTIVE"
	UserBlocked UserStatus = "BLOCKED"
)

// User is an account able to author posts and comments.
type User struct {
	ID            string     `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string     `gorm:"not null" json:"name"`
	Email         string     `gorm:"uniqueIndex;not null" json:"email"`
	Password      string     `json:"-"`
	Role          Role       `gorm:"type:varchar(16);not null;default:USER;index" json:"role"`
	Status        UserStatus `gorm:"type:varchar(16);not null;default:ACTIVE" json:"status"`
	Phone         *string    `json:"phone,omitempty"`
	Image         *string    `json:"image,omitempty"`
	EmailVerified bool       `gorm:"not null;default:false" json:"emailVerified"`
	GoogleID      *string    `gorm:"uniqueIndex" json:"-"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// IsAdmin reports whether the account carries the ADMIN role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// UserSummary is the public author projection embedded in posts and comments.
type UserSummary struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Image *string `json:"image,omitempty"`
}

// TableName points the projection at the users table.
func (UserSummary) TableName() string { return "users" }
