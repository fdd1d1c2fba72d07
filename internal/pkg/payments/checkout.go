package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AcademyPay/app/models"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/gateway"
)

var validate = validator.New()

// CheckoutRequest opens a hosted checkout for one payable.
type CheckoutRequest struct {
	AcademyID   uint            `json:"academy_id" validate:"required"`
	UserID      uint            `json:"user_id" validate:"required"`
	Gateway     string          `json:"gateway" validate:"required,oneof=easykash paymob tap"`
	PayableType string          `json:"payable_type" validate:"required"`
	PayableID   uint            `json:"payable_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency" validate:"required,len=3"`
	Description string          `json:"description" validate:"max=255"`
}

type CheckoutResult struct {
	PaymentID   uint   `json:"payment_id"`
	RedirectURL string `json:"redirect_url"`
	Reference   string `json:"reference"`
}

// StartCheckout creates a pending payment and the matching gateway charge.
// The amount is fixed here and never changes afterwards.
func (s *Service) StartCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	req.Gateway = strings.ToLower(strings.TrimSpace(req.Gateway))
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if !s.payables.Supports(req.PayableType) {
		return nil, fmt.Errorf("%w: unknown payable type %q", ErrValidation, req.PayableType)
	}

	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.Where("id = ? AND academy_id = ?", req.UserID, req.AcademyID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d not in academy %d", ErrValidation, req.UserID, req.AcademyID)
		}
		return nil, fmt.Errorf("%w: load user: %v", ErrPersistence, err)
	}

	payment := &models.Payment{
		AcademyID:       req.AcademyID,
		UserID:          req.UserID,
		PayableType:     req.PayableType,
		PayableID:       req.PayableID,
		Amount:          req.Amount.Round(2),
		Currency:        req.Currency,
		Gateway:         req.Gateway,
		GatewayIntentID: gateway.NewReference(req.AcademyID),
		Status:          models.PaymentStatusPending,
	}
	if _, err := s.payables.Load(db, payment); err != nil {
		return nil, fmt.Errorf("%w: payable %s/%d: %v", ErrValidation, req.PayableType, req.PayableID, err)
	}
	if req.PayableType == models.PayableSubscription {
		id := req.PayableID
		payment.SubscriptionID = &id
	}

	creds, err := s.credentials.Resolve(ctx, req.AcademyID, req.Gateway)
	if err != nil {
		return nil, err
	}
	adapter, err := s.adapters(creds)
	if err != nil {
		return nil, err
	}

	if err := db.Create(payment).Error; err != nil {
		return nil, fmt.Errorf("%w: create payment: %v", ErrPersistence, err)
	}

	charge, err := adapter.CreateCharge(ctx, gateway.ChargeRequest{
		PaymentID:   payment.ID,
		AcademyID:   payment.AcademyID,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Description: req.Description,
		Reference:   payment.GatewayIntentID,
		Customer: gateway.Customer{
			FirstName: user.FirstName(),
			LastName:  user.LastName(),
			Email:     user.Email,
			Phone:     user.Phone,
		},
		RedirectURL: s.callbackURL(payment),
		WebhookURL:  s.webhookURL(payment.Gateway),
	})
	if err != nil {
		s.abandonCheckout(ctx, payment, err)
		return nil, fmt.Errorf("create %s charge: %w", payment.Gateway, err)
	}

	updates := map[string]interface{}{}
	if charge.IntentID != "" && charge.IntentID != payment.GatewayIntentID {
		updates["gateway_intent_id"] = charge.IntentID
	}
	if charge.TransactionID != "" {
		updates["gateway_transaction_id"] = charge.TransactionID
	}
	if charge.OrderID != "" {
		updates["gateway_order_id"] = charge.OrderID
	}
	if len(updates) > 0 {
		if err := db.Model(payment).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("%w: store charge ids: %v", ErrPersistence, err)
		}
	}

	s.logger.Info("checkout started",
		zap.Uint("payment_id", payment.ID),
		zap.Uint("academy_id", payment.AcademyID),
		zap.String("gateway", payment.Gateway),
		zap.String("reference", payment.GatewayIntentID))

	return &CheckoutResult{
		PaymentID:   payment.ID,
		RedirectURL: charge.RedirectURL,
		Reference:   payment.GatewayIntentID,
	}, nil
}

// abandonCheckout moves a payment whose charge could not be created to failed.
func (s *Service) abandonCheckout(ctx context.Context, p *models.Payment, cause error) {
	_, err := s.applyTransition(ctx, transition{
		PaymentID: p.ID,
		Gateway:   p.Gateway,
		Target:    models.PaymentStatusFailed,
		Metadata:  map[string]string{"error_message": truncate(cause.Error(), 255)},
		Note:      "charge creation failed",
		Actor:     models.AuditActorCheckout,
	})
	if err != nil {
		s.logger.Error("mark abandoned checkout failed", zap.Uint("payment_id", p.ID), zap.Error(err))
	}
}

func (s *Service) callbackURL(p *models.Payment) string {
	return fmt.Sprintf("%s/payments/callback/%s?payment=%d", strings.TrimRight(s.cfg.PublicBaseURL, "/"), p.Gateway, p.ID)
}

func (s *Service) webhookURL(gatewayName string) string {
	return fmt.Sprintf("%s/payments/webhook/%s", strings.TrimRight(s.cfg.PublicBaseURL, "/"), gatewayName)
}
