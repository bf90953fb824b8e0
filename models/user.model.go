package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles a caller can hold.
const (
	RoleStudent    = "STUDENT"
	RoleInstructor = "INSTRUCTOR"
	RoleManager    = "MANAGER"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleManager:
		return true
	}
	return false
}

type User struct {
	ID                  string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email               string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password            string     `gorm:"type:varchar(255);not null" json:"-"`
	Role                string     `gorm:"type:varchar(20);not null;default:'STUDENT'" json:"role"`
	FirstName           string     `gorm:"type:varchar(100);not null" json:"firstName"`
	LastName            string     `gorm:"type:varchar(100);not null" json:"lastName"`
	FailedLoginAttempts int        `gorm:"default:0" json:"-"`
	LastFailedLogin     *time.Time `json:"-"`
	BlockedUntil        *time.Time `json:"-"`
	LastLogin           *time.Time `json:"lastLogin,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
