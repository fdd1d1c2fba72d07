package payments

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ManuelReschke/AcademyPay/app/models"
)

// lookup carries every correlation id a notification may surface.
type lookup struct {
	Gateway       string
	PaymentID     uint
	TransactionID string
	IntentID      string
	OrderID       string
	// Accept, when set, rejects a candidate so the next strategy runs.
	Accept func(*models.Payment) bool
}

// locatePayment tries, in order: our payment id, the gateway transaction id,
// the intent id (merchant reference) and finally the gateway order id.
func (s *Service) locatePayment(ctx context.Context, l lookup) (*models.Payment, error) {
	db := s.db.WithContext(ctx)

	type strategy struct {
		skip  bool
		query func(*models.Payment) error
	}
	strategies := []strategy{
		{
			skip: l.PaymentID == 0,
			query: func(p *models.Payment) error {
				return db.Where("id = ? AND gateway = ?", l.PaymentID, l.Gateway).First(p).Error
			},
		},
		{
			skip: l.TransactionID == "",
			query: func(p *models.Payment) error {
				return db.Where("gateway = ? AND gateway_transaction_id = ?", l.Gateway, l.TransactionID).First(p).Error
			},
		},
		{
			skip: l.IntentID == "",
			query: func(p *models.Payment) error {
				return db.Where("gateway = ? AND gateway_intent_id = ?", l.Gateway, l.IntentID).First(p).Error
			},
		},
		{
			skip: l.OrderID == "",
			query: func(p *models.Payment) error {
				return db.Where("gateway = ? AND (gateway_order_id = ? OR gateway_intent_id = ? OR gateway_transaction_id = ?)", l.Gateway, l.OrderID, l.OrderID, l.OrderID).First(p).Error
			},
		},
	}

	for _, st := range strategies {
		if st.skip {
			continue
		}
		var p models.Payment
		err := st.query(&p)
		if err == nil {
			if l.Accept != nil && !l.Accept(&p) {
				continue
			}
			return &p, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: locate payment: %v", ErrPersistence, err)
		}
	}
	return nil, ErrPaymentNotFound
}
