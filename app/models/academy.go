package models

import "time"

const (
	LocaleArabic  = "ar"
	LocaleEnglish = "en"
)

// Academy is the tenant. Every payment belongs to exactly one academy and all
// browser-facing URLs live on its subdomain.
type Academy struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(191);not null" json:"name"`
	Subdomain string    `gorm:"type:varchar(63);not null;uniqueIndex" json:"subdomain"`
	Locale    string    `gorm:"type:varchar(5);not null;default:'ar'" json:"locale"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Academy) TableName() string {
	return "academies"
}
