package models

import "time"

type ComplaintStatus string

const (
	StatusPending   ComplaintStatus = "Pending"
	StatusResolved  ComplaintStatus = "Resolved"
	StatusDismissed ComplaintStatus = "Dismissed"
)

func (s ComplaintStatus) Valid() bool {
	switch s {
	case StatusPending, StatusResolved, StatusDismissed:
		return true
	}
	return false
}

// Complaint is filed by a resident. IsDeleted hides it from every listing
// without removing the row.
type Complaint struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	UserID      uint            `json:"user_id" gorm:"not null;index"`
	User        *User           `json:"-" gorm:"foreignKey:UserID"`
	Title       string          `json:"title" gorm:"type:varchar(100);not null"`
	Description string          `json:"description" gorm:"type:text"`
	Status      ComplaintStatus `json:"status" gorm:"type:varchar(20);not null;default:'Pending';index"`
	IsDeleted   bool            `json:"is_deleted" gorm:"not null;default:false;index"`
	CreatedAt   time.Time       `json:"created_at" gorm:"index"`
}
