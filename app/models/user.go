package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	ROLE_STUDENT = "student"
	ROLE_PARENT  = "parent"
	ROLE_TEACHER = "teacher"
	ROLE_ADMIN   = "admin"

	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
)

// User is the minimal identity the payment flow needs: who paid, where to
// send the receipt, and which academy the account belongs to.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	AcademyID uint           `gorm:"not null;index" json:"academy_id"`
	Name      string         `gorm:"type:varchar(150)" json:"name"`
	Email     string         `gorm:"type:varchar(200);index" json:"email"`
	Phone     string         `gorm:"type:varchar(30)" json:"phone"`
	Role      string         `gorm:"type:varchar(20);default:'student'" json:"role"`
	Status    string         `gorm:"type:varchar(20);default:'active'" json:"status"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// FirstName and LastName split the display name the way gateways expect
// billing data. Single-word names repeat the word as last name.
func (u *User) FirstName() string {
	parts := strings.Fields(u.Name)
	if len(parts) == 0 {
		return "NA"
	}
	return parts[0]
}

func (u *User) LastName() string {
	parts := strings.Fields(u.Name)
	if len(parts) == 0 {
		return "NA"
	}
	return parts[len(parts)-1]
}
