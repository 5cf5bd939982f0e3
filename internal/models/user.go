package models

import (
	"time"
)

// Role is the closed set of authorization levels a user can hold.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleResident Role = "Resident"
	RoleSecurity Role = "Security"
	RoleMedical  Role = "Medical"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleResident, RoleSecurity, RoleMedical:
		return true
	}
	return false
}

type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"type:varchar(50);not null"`
	Email        string    `json:"email" gorm:"type:varchar(100);uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"`
	Role         Role      `json:"role" gorm:"type:varchar(20);not null;default:'Resident'"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is the server-side half of a login. The client only holds a
// signed reference to ID.
type Session struct {
	ID        string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	Username  string    `json:"username" gorm:"type:varchar(50)"`
	Role      Role      `json:"role" gorm:"type:varchar(20);not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index"`
	Action    string    `json:"action" gorm:"type:varchar(255);not null"`
	Timestamp time.Time `json:"timestamp" gorm:"autoCreateTime;index"`
}
