package models

import "time"

const (
	AuditActorWebhook  = "webhook"
	AuditActorCallback = "callback"
	AuditActorCheckout = "checkout"
)

// PaymentAuditLog is an append-only record of one accepted status change.
type PaymentAuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PaymentID  uint      `gorm:"not null;index" json:"payment_id"`
	FromStatus string    `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus   string    `gorm:"type:varchar(20);not null" json:"to_status"`
	Note       string    `gorm:"type:text" json:"note"`
	Actor      string    `gorm:"type:varchar(20);not null" json:"actor"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (PaymentAuditLog) TableName() string {
	return "payment_audit_log"
}
