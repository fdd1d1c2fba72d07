package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	SubscriptionKindQuran    = "quran"
	SubscriptionKindAcademic = "academic"
)

const (
	SubscriptionStatusPending   = "pending"
	SubscriptionStatusActive    = "active"
	SubscriptionStatusExpired   = "expired"
	SubscriptionStatusCancelled = "cancelled"

	PaymentStateUnpaid = "unpaid"
	PaymentStatePaid   = "paid"
)

// Subscription is a recurring quran-circle or academic-tutoring package.
type Subscription struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	AcademyID          uint       `gorm:"not null;index" json:"academy_id"`
	StudentID          uint       `gorm:"not null;index" json:"student_id"`
	Kind               string     `gorm:"type:varchar(20);not null;default:'quran'" json:"kind"`
	Status             string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentStatus      string     `gorm:"type:varchar(20);not null;default:'unpaid'" json:"payment_status"`
	BillingCycleMonths int        `gorm:"not null;default:1" json:"billing_cycle_months"`
	StartsAt           *time.Time `gorm:"type:timestamp;default:null" json:"starts_at,omitempty"`
	EndsAt             *time.Time `gorm:"type:timestamp;default:null" json:"ends_at,omitempty"`
	LastPaymentID      *uint      `json:"last_payment_id,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// ActivateFromPayment marks the subscription paid and opens (or extends) its
// period. Runs inside the payment transaction; a second call for the same
// payment is a no-op.
func (s *Subscription) ActivateFromPayment(tx *gorm.DB, payment *Payment) error {
	if s.LastPaymentID != nil && *s.LastPaymentID == payment.ID {
		return nil
	}

	now := time.Now()
	if payment.PaidAt != nil {
		now = *payment.PaidAt
	}
	months := s.BillingCycleMonths
	if months <= 0 {
		months = 1
	}

	start := now
	if s.Status == SubscriptionStatusActive && s.EndsAt != nil && s.EndsAt.After(now) {
		// renewal: extend from the current end
		start = *s.EndsAt
	}
	end := start.AddDate(0, months, 0)

	updates := map[string]interface{}{
		"status":          SubscriptionStatusActive,
		"payment_status":  PaymentStatePaid,
		"ends_at":         end,
		"last_payment_id": payment.ID,
	}
	if s.StartsAt == nil {
		updates["starts_at"] = start
	}
	if err := tx.Model(s).Updates(updates).Error; err != nil {
		return fmt.Errorf("activate subscription %d: %w", s.ID, err)
	}
	return nil
}

// PaymentReturnPath is the tenant-relative page shown after checkout.
func (s *Subscription) PaymentReturnPath() string {
	return fmt.Sprintf("/student/subscriptions/%s/%d", s.Kind, s.ID)
}
