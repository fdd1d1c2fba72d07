package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/AcademyPay/app/models"
)

// transition is one requested status change, from either channel.
type transition struct {
	PaymentID     uint
	Gateway       string
	Target        string
	TransactionID string
	PaymentMethod string
	CardBrand     string
	CardLastFour  string
	PaidAt        *time.Time
	Metadata      map[string]string
	Note          string
	Actor         string
	// Event is the ledger row to settle in the same transaction. Nil for
	// callbacks.
	Event *models.WebhookEvent
}

type transitionResult struct {
	Payment   *models.Payment
	From      string
	Applied   bool
	Activated bool
}

// applyTransition is the single place a payment's status changes. Under a
// row lock it re-reads the status, applies the change when the state machine
// allows it, writes the audit row, settles the ledger event and activates the
// payable. Side effects run after commit.
func (s *Service) applyTransition(ctx context.Context, in transition) (*transitionResult, error) {
	res := &transitionResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, in.PaymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return fmt.Errorf("%w: lock payment: %v", ErrPersistence, err)
		}
		res.From = p.Status
		res.Payment = &p

		if in.Event != nil {
			in.Event.PaymentID = &p.ID
		}

		if !CanTransition(p.Status, in.Target) {
			if in.Event != nil {
				if err := s.ledger.WithTx(tx).MarkProcessed(ctx, in.Event); err != nil {
					return err
				}
			}
			return nil
		}

		updates := map[string]interface{}{"status": in.Target}
		if in.TransactionID != "" && in.TransactionID != p.TransactionRef() {
			if p.TransactionRef() != "" {
				return fmt.Errorf("%w: payment %d holds %s, got %s", ErrTransactionConflict, p.ID, p.TransactionRef(), in.TransactionID)
			}
			var holders int64
			if err := tx.Model(&models.Payment{}).
				Where("gateway = ? AND gateway_transaction_id = ? AND id <> ?", p.Gateway, in.TransactionID, p.ID).
				Count(&holders).Error; err != nil {
				return fmt.Errorf("%w: check transaction: %v", ErrPersistence, err)
			}
			if holders > 0 {
				return fmt.Errorf("%w: %s already bound to another payment", ErrTransactionConflict, in.TransactionID)
			}
			updates["gateway_transaction_id"] = in.TransactionID
		}
		if in.PaymentMethod != "" {
			updates["payment_method"] = truncate(in.PaymentMethod, 50)
		}
		if in.CardBrand != "" {
			updates["card_brand"] = truncate(in.CardBrand, 30)
		}
		if in.CardLastFour != "" {
			updates["card_last_four"] = truncate(in.CardLastFour, 4)
		}
		if in.Target == models.PaymentStatusCompleted && p.PaidAt == nil {
			paidAt := s.now()
			if in.PaidAt != nil {
				paidAt = in.PaidAt.UTC()
			}
			updates["paid_at"] = paidAt
		}
		if len(in.Metadata) > 0 {
			merged, err := mergeMetadata(p.GatewayMetadata, in.Metadata)
			if err != nil {
				return fmt.Errorf("%w: merge metadata: %v", ErrUnexpected, err)
			}
			updates["gateway_metadata"] = merged
		}

		if err := tx.Model(&p).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %s already bound to another payment", ErrTransactionConflict, in.TransactionID)
			}
			return fmt.Errorf("%w: update payment: %v", ErrPersistence, err)
		}
		if err := tx.First(&p, p.ID).Error; err != nil {
			return fmt.Errorf("%w: reload payment: %v", ErrPersistence, err)
		}

		if err := s.audit.WithTx(tx).Record(ctx, &p, res.From, in.Target, in.Note, in.Actor); err != nil {
			return err
		}
		if in.Event != nil {
			if err := s.ledger.WithTx(tx).MarkProcessed(ctx, in.Event); err != nil {
				return err
			}
		}
		if in.Target == models.PaymentStatusCompleted {
			if err := s.dispatcher.Activate(tx, &p); err != nil {
				return err
			}
			res.Activated = true
		}
		res.Applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if in.Event != nil {
		s.ledger.Remember(ctx, in.Event.IdempotencyKey)
	}

	if !res.Applied {
		s.logIgnoredTransition(in, res.From)
		return res, nil
	}

	s.logger.Info("payment transition applied",
		zap.Uint("payment_id", res.Payment.ID),
		zap.String("gateway", in.Gateway),
		zap.String("from", res.From),
		zap.String("to", in.Target),
		zap.String("actor", in.Actor))

	if res.Activated {
		s.dispatcher.AfterCommit(ctx, res.Payment)
	}
	return res, nil
}

func (s *Service) logIgnoredTransition(in transition, from string) {
	if from == in.Target {
		s.logger.Info("payment already in target status",
			zap.Uint("payment_id", in.PaymentID),
			zap.String("gateway", in.Gateway),
			zap.String("status", from),
			zap.String("actor", in.Actor))
		return
	}
	s.metrics.ignored(in.Gateway, from, in.Target)
	s.logger.Warn("payment transition not allowed, acknowledged without effect",
		zap.Uint("payment_id", in.PaymentID),
		zap.String("gateway", in.Gateway),
		zap.String("from", from),
		zap.String("to", in.Target),
		zap.String("actor", in.Actor))
}

func mergeMetadata(existing datatypes.JSON, add map[string]string) (datatypes.JSON, error) {
	m := map[string]interface{}{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &m); err != nil {
			m = map[string]interface{}{}
		}
	}
	for k, v := range add {
		if v == "" {
			continue
		}
		m[k] = v
	}
	out, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
