package models

import (
	"time"
)

// Role is the closed set of access levels a user can hold.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents an account that can sign in and place orders.
type User struct {
	BaseModel
	Name                string     `json:"name"`
	Email               string     `gorm:"uniqueIndex" json:"email"`
	PasswordHash        string     `json:"-"`
	Role                Role       `gorm:"type:varchar(16);default:user" json:"role"`
	ResetToken          *string    `gorm:"index" json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
}

// ResetTokenUsable reports whether the stored reset token may still be consumed at now.
// The expiry instant itself is already too late.
func (u *User) ResetTokenUsable(now time.Time) bool {
	return u.ResetToken != nil && u.ResetTokenExpiresAt != nil && u.ResetTokenExpiresAt.After(now)
}
