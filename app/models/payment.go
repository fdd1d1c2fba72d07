package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
	PaymentStatusCancelled  = "cancelled"
)

// Payable type tags stored on payments.payable_type.
const (
	PayableSubscription     = "subscription"
	PayableCourseEnrollment = "course_enrollment"
)

const (
	GatewayEasyKash = "easykash"
	GatewayPaymob   = "paymob"
	GatewayTap      = "tap"
)

// ErrPaymentAmountImmutable is returned by the update hook when a caller tries
// to rewrite the amount of an existing payment.
var ErrPaymentAmountImmutable = errors.New("payment amount is immutable")

// Payment is one purchase attempt. PayableType/PayableID point at the
// purchase-domain entity that gets activated once the payment completes.
type Payment struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	AcademyID uint `gorm:"not null;index" json:"academy_id"`
	UserID    uint `gorm:"not null;index" json:"user_id"`

	PayableType string `gorm:"type:varchar(50);not null;default:'';index:idx_payments_payable,priority:1" json:"payable_type"`
	PayableID   uint   `gorm:"not null;default:0;index:idx_payments_payable,priority:2" json:"payable_id"`
	// SubscriptionID is the denormalized legacy link used before payables were
	// polymorphic. Still honoured by activation when PayableType is empty.
	SubscriptionID *uint `gorm:"index" json:"subscription_id,omitempty"`

	Amount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency string          `gorm:"type:varchar(3);not null;default:'EGP'" json:"currency"`

	Gateway string `gorm:"type:varchar(20);not null;index;uniqueIndex:ux_payments_gateway_transaction,priority:1" json:"gateway"`
	// GatewayTransactionID is NULL until a gateway reports one; a transaction
	// belongs to at most one payment per gateway.
	GatewayTransactionID *string `gorm:"type:varchar(191);default:null;uniqueIndex:ux_payments_gateway_transaction,priority:2" json:"gateway_transaction_id,omitempty"`
	GatewayOrderID       string  `gorm:"type:varchar(191);not null;default:'';index" json:"gateway_order_id"`
	GatewayIntentID      string  `gorm:"type:varchar(191);not null;default:'';index" json:"gateway_intent_id"`

	Status          string         `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentMethod   string         `gorm:"type:varchar(50);not null;default:''" json:"payment_method"`
	CardBrand       string         `gorm:"type:varchar(30);not null;default:''" json:"card_brand"`
	CardLastFour    string         `gorm:"type:varchar(4);not null;default:''" json:"card_last_four"`
	GatewayMetadata datatypes.JSON `gorm:"type:json" json:"gateway_metadata,omitempty"`

	PaidAt    *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// BeforeUpdate rejects any update that touches the amount column.
func (p *Payment) BeforeUpdate(tx *gorm.DB) error {
	if tx.Statement.Changed("Amount") {
		return ErrPaymentAmountImmutable
	}
	return nil
}

// TransactionRef returns the gateway transaction id, or "" when none is bound.
func (p *Payment) TransactionRef() string {
	if p.GatewayTransactionID == nil {
		return ""
	}
	return *p.GatewayTransactionID
}

// AmountInMinorUnits returns round(amount * 100).
func (p *Payment) AmountInMinorUnits() int64 {
	return p.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (p *Payment) IsCompleted() bool {
	return p.Status == PaymentStatusCompleted
}

// IsTerminal reports whether no further forward transition is expected.
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusCancelled:
		return true
	default:
		return false
	}
}
