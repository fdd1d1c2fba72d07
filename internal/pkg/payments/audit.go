package payments

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/ManuelReschke/AcademyPay/app/models"
)

// AuditLog appends one row per accepted payment status change.
type AuditLog struct {
	db *gorm.DB
}

func NewAuditLog(db *gorm.DB) *AuditLog {
	return &AuditLog{db: db}
}

func (a *AuditLog) WithTx(tx *gorm.DB) *AuditLog {
	return &AuditLog{db: tx}
}

func (a *AuditLog) Record(ctx context.Context, p *models.Payment, from, to, note, actor string) error {
	entry := &models.PaymentAuditLog{
		PaymentID:  p.ID,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
		Actor:      actor,
	}
	if err := a.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("%w: audit log: %v", ErrPersistence, err)
	}
	return nil
}

// History returns a payment's transitions, oldest first.
func (a *AuditLog) History(ctx context.Context, paymentID uint) ([]models.PaymentAuditLog, error) {
	var rows []models.PaymentAuditLog
	err := a.db.WithContext(ctx).Where("payment_id = ?", paymentID).Order("id ASC").Find(&rows).Error
	return rows, err
}
