package models

import "time"

// AcademyGatewaySetting holds one academy's merchant credentials for a gateway.
// Academies without a row fall back to the platform account from the env.
type AcademyGatewaySetting struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	AcademyID     uint      `gorm:"not null;index:ux_academy_gateway_settings,unique,priority:1" json:"academy_id"`
	Gateway       string    `gorm:"type:varchar(20);not null;index:ux_academy_gateway_settings,unique,priority:2" json:"gateway"`
	APIKey        string    `gorm:"type:text" json:"-"`
	SecretKey     string    `gorm:"type:text" json:"-"`
	PublicKey     string    `gorm:"type:varchar(255)" json:"public_key"`
	HMACSecret    string    `gorm:"type:text" json:"-"`
	IntegrationID string    `gorm:"type:varchar(50)" json:"integration_id"`
	BaseURL       string    `gorm:"type:varchar(255)" json:"base_url"`
	IsActive      bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AcademyGatewaySetting) TableName() string {
	return "academy_gateway_settings"
}
