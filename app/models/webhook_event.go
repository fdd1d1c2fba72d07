package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	WebhookEventStatusReceived  = "received"
	WebhookEventStatusProcessed = "processed"
	WebhookEventStatusFailed    = "failed"
)

// WebhookEvent is the idempotency ledger row for one inbound gateway
// notification. IdempotencyKey carries the unique index that serializes
// concurrent deliveries of the same event.
type WebhookEvent struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Gateway        string         `gorm:"type:varchar(20);not null;index" json:"gateway"`
	EventType      string         `gorm:"type:varchar(100);not null;default:''" json:"event_type"`
	IdempotencyKey string         `gorm:"type:varchar(191);not null;uniqueIndex:ux_webhook_events_idempotency_key" json:"idempotency_key"`
	Payload        datatypes.JSON `gorm:"type:json" json:"payload"`
	PaymentID      *uint          `gorm:"index" json:"payment_id,omitempty"`
	AcademyID      *uint          `gorm:"index" json:"academy_id,omitempty"`
	Status         string         `gorm:"type:varchar(20);not null;default:'received';index" json:"status"`
	ErrorMessage   string         `gorm:"type:text" json:"error_message"`
	Attempts       int            `gorm:"not null;default:1" json:"attempts"`
	// LeaseExpiresAt bounds how long a "received" row blocks redelivery. A
	// request that died mid-flight releases or outlives its lease so the
	// provider's retry can reclaim the key.
	LeaseExpiresAt *time.Time `gorm:"type:timestamp;default:null" json:"lease_expires_at,omitempty"`
	ProcessedAt    *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}
